// Package app wires configuration, input files, time maps, the reference
// model, the output sink and the run recorders into one sweep service.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/gridsweep/config"
	"github.com/kilianp07/gridsweep/core/energy"
	coremetrics "github.com/kilianp07/gridsweep/core/metrics"
	"github.com/kilianp07/gridsweep/core/output"
	"github.com/kilianp07/gridsweep/core/scenario"
	"github.com/kilianp07/gridsweep/core/sweep"
	"github.com/kilianp07/gridsweep/core/timemap"
	"github.com/kilianp07/gridsweep/core/transmission"
	"github.com/kilianp07/gridsweep/infra/input"
	"github.com/kilianp07/gridsweep/infra/logger"
	"github.com/kilianp07/gridsweep/infra/metrics"
	"github.com/kilianp07/gridsweep/infra/mqtt"
	// registers the file and database sinks
	_ "github.com/kilianp07/gridsweep/infra/output"
	"github.com/kilianp07/gridsweep/internal/eventbus"
)

// Service runs one configured sweep.
type Service struct {
	cfg      *config.Config
	log      logger.Logger
	maps     map[string]*timemap.Map
	model    *energy.Model
	matrix   *scenario.Matrix
	recorder coremetrics.RunRecorder
	client   *mqtt.PahoClient
}

// New loads the system file and builds the model and run table described
// by cfg. Configuration errors surface here, before any run executes.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	log := logger.New("service")

	def, err := input.ReadDef(cfg.Model.Input)
	if err != nil {
		return nil, fmt.Errorf("read system: %w", err)
	}
	maps, err := BuildMaps(cfg.Model, def.Nodes)
	if err != nil {
		return nil, err
	}
	samples := make(map[string]int, len(maps))
	for n, m := range maps {
		samples[n] = m.NativeCount()
	}
	sys, err := def.Resolve(filepath.Dir(cfg.Model.Input), samples)
	if err != nil {
		return nil, fmt.Errorf("load system: %w", err)
	}

	pairs := make([]transmission.Pair, len(sys.Interconnects))
	for i, ic := range sys.Interconnects {
		pairs[i] = transmission.Pair{From: ic.From, To: ic.To}
	}
	links, err := transmission.AlignAll(maps, pairs)
	if err != nil {
		return nil, err
	}
	model, err := energy.NewModel(sys, maps, links, cfg.Sweep.Bindings, cfg.Model.Energy(), logger.New("model"))
	if err != nil {
		return nil, err
	}
	matrix, err := BuildMatrix(cfg.Sweep)
	if err != nil {
		return nil, err
	}

	svc := &Service{cfg: cfg, log: log, maps: maps, model: model, matrix: matrix}
	if svc.recorder, err = coremetrics.NewRecorder(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.client = client
		svc.recorder = coremetrics.NewMultiSink(svc.recorder, mqtt.NewRecorder(client))
	}
	log.Infof("model ready: %d nodes, %d links, groups %v, %d runs", len(maps), len(links), model.Groups(), matrix.Len())
	return svc, nil
}

// BuildMaps builds the slot table of every node using the node resolutions
// and the shared calendar filter.
func BuildMaps(mc config.ModelConfig, nodes []string) (map[string]*timemap.Map, error) {
	profiles, err := mc.Profiles(nodes)
	if err != nil {
		return nil, err
	}
	maps := make(map[string]*timemap.Map, len(profiles))
	for _, p := range profiles {
		m, err := timemap.NewMap(p, mc.Calendar)
		if err != nil {
			return nil, err
		}
		maps[p.Node] = m
	}
	return maps, nil
}

// BuildMatrix expands the configured axes, applies the run filter and
// labels the steps of bound axes that carry labels.
func BuildMatrix(sc config.SweepConfig) (*scenario.Matrix, error) {
	axes, err := sc.ScenarioAxes()
	if err != nil {
		return nil, err
	}
	m, err := scenario.NewMatrix(axes...)
	if err != nil {
		return nil, err
	}
	keep, err := scenario.CompileFilter(m, sc.Filter)
	if err != nil {
		return nil, err
	}
	if !sc.Filter.Empty() {
		m = m.Filter(keep)
	}
	for _, b := range sc.Bindings {
		if len(b.Labels) == 0 {
			continue
		}
		if err := m.Label(b.Axis, b.Label); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Matrix returns the run table.
func (s *Service) Matrix() *scenario.Matrix { return s.matrix }

// Maps returns the node slot tables.
func (s *Service) Maps() map[string]*timemap.Map { return s.maps }

// Run executes the sweep until it finishes, ctx is canceled or a stop
// command arrives over MQTT.
func (s *Service) Run(ctx context.Context) (sweep.Report, error) {
	session := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.client != nil {
		s.client.OnStop(func(target string) {
			if target == "" || target == session {
				s.log.Warnf("stop requested, finishing current run")
				cancel()
			}
		})
	}
	if s.cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.Listen, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	var sink output.Sink
	if !s.cfg.IO.SuppressOutput {
		var err error
		sink, err = output.Open(ctx, s.cfg.IO.Output)
		if err != nil {
			return sweep.Report{Session: session}, fmt.Errorf("%w: %v", sweep.ErrSink, err)
		}
		defer func() {
			if err := sink.Close(); err != nil {
				s.log.Errorf("close output: %v", err)
			}
		}()
	}

	bus := eventbus.NewTyped[coremetrics.RunEvent]()
	done := metrics.StartRunCollector(context.Background(), bus, s.recorder, logger.New("collector"))

	opts := s.cfg.IO.Options(session, s.cfg.Model.MetadataOnly)
	runner := sweep.NewRunner(s.model, sink, opts, logger.New("sweep"))
	runner.SetEventBus(bus)
	rep, err := runner.Run(ctx, s.matrix)

	bus.Close()
	<-done
	if dropped := bus.Dropped(); dropped > 0 {
		s.log.Warnf("%d run events dropped", dropped)
	}
	if rec, ok := s.recorder.(coremetrics.SweepRecorder); ok {
		if rerr := rec.RecordSweep(summary(rep)); rerr != nil {
			s.log.Warnf("record sweep: %v", rerr)
		}
	}
	if errors.Is(err, context.Canceled) {
		s.log.Warnf("sweep %s interrupted, resume with resume_auto", session)
	}
	return rep, err
}

func summary(rep sweep.Report) coremetrics.SweepEvent {
	return coremetrics.SweepEvent{
		Session:   rep.Session,
		Total:     rep.Total,
		Completed: rep.Completed(),
		Failed:    len(rep.Failed()),
		Skipped:   rep.Skipped,
		Duration:  rep.Duration,
		Time:      time.Now(),
	}
}

// Close releases the MQTT connection.
func (s *Service) Close() error {
	if s.client != nil {
		s.client.Disconnect()
	}
	return nil
}
