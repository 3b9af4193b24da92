package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/gridsweep/core/metrics"
	"github.com/kilianp07/gridsweep/infra/logger"
	"github.com/kilianp07/gridsweep/internal/eventbus"
)

// collectorBuffer bounds the run events queued while a recorder is slow.
const collectorBuffer = 1024

// StartRunCollector subscribes to the bus and forwards every run event to
// rec. It stops when ctx is canceled or the bus is closed and drains the
// events already queued. The returned channel is closed once it stopped.
func StartRunCollector(ctx context.Context, bus *eventbus.TypedBus[coremetrics.RunEvent], rec coremetrics.RunRecorder, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || rec == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.SubscribeN(collectorBuffer)
	record := func(ev coremetrics.RunEvent) {
		if err := rec.RecordRun(ev); err != nil {
			log.Warnf("record run %d: %v", ev.RunID, err)
		}
	}
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case ev, ok := <-sub:
						if !ok {
							return
						}
						record(ev)
					default:
						return
					}
				}
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(ev)
			}
		}
	}()
	return done
}
