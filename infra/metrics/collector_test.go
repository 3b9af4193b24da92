package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/gridsweep/core/metrics"
	"github.com/kilianp07/gridsweep/infra/logger"
	"github.com/kilianp07/gridsweep/internal/eventbus"
)

type recordingSink struct {
	mu   sync.Mutex
	runs []int
	err  error
}

func (r *recordingSink) RecordRun(ev coremetrics.RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, ev.RunID)
	return r.err
}

func (r *recordingSink) ids() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.runs...)
}

func TestStartRunCollector_ForwardsEvents(t *testing.T) {
	bus := eventbus.NewTyped[coremetrics.RunEvent]()
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartRunCollector(ctx, bus, sink, logger.NopLogger{})

	for i := 0; i < 5; i++ {
		bus.Publish(coremetrics.RunEvent{RunID: i, Status: coremetrics.StatusOptimal})
	}
	require.Eventually(t, func() bool { return len(sink.ids()) == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, []int{0, 1, 2, 3, 4}, sink.ids())
}

func TestStartRunCollector_StopsOnBusClose(t *testing.T) {
	bus := eventbus.NewTyped[coremetrics.RunEvent]()
	sink := &recordingSink{err: errors.New("down")}
	done := StartRunCollector(context.Background(), bus, sink, nil)

	bus.Publish(coremetrics.RunEvent{RunID: 7})
	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
	assert.Equal(t, []int{7}, sink.ids())
}

func TestStartRunCollector_NilBus(t *testing.T) {
	done := StartRunCollector(context.Background(), nil, &recordingSink{}, nil)
	select {
	case <-done:
	default:
		t.Fatal("expected closed channel")
	}
}
