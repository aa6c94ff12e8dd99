// Package engine implements the process-wide facade state machine
// (Uninitialized -> Configured -> Running -> Closed) that owns every
// long-lived resource explicitly as a field rather than behind a hidden
// global.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kcache/kawai/internal/config"
	"github.com/kcache/kawai/internal/decode"
	"github.com/kcache/kawai/internal/ingest"
	"github.com/kcache/kawai/internal/kawaierr"
	"github.com/kcache/kawai/internal/logging"
	"github.com/kcache/kawai/internal/metrics"
	"github.com/kcache/kawai/internal/registry"
	"github.com/kcache/kawai/internal/sink"
	"github.com/kcache/kawai/internal/source"
	"github.com/kcache/kawai/internal/translate"
)

// commitInterval is how often Init's commit loop acknowledges the highest
// durably-inserted offset per partition back to the log source.
const commitInterval = 5 * time.Second

// State is one node of the facade's lifecycle state machine.
type State int

const (
	Uninitialized State = iota
	Configured
	Running
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Engine is the process-wide facade. Every long-lived resource it opens
// during Init is an explicit field, closed during Close.
type Engine struct {
	mu    sync.Mutex
	state State

	cfg     *config.Config
	logger  *zap.SugaredLogger
	metrics *metrics.Registry

	dispatcher *translate.Dispatcher
	resolver   *registry.Resolver
	sinkEngine *sink.Engine
	src        *source.Source

	workers      map[string]*ingest.Worker
	workerCancel context.CancelFunc
	wg           sync.WaitGroup

	metricsSrv *http.Server

	fedMu     sync.Mutex
	fed       map[string]map[int32]source.Record
	committed map[string]map[int32]int64
}

// New builds an Engine in the Uninitialized state.
func New() *Engine {
	return &Engine{
		state:     Uninitialized,
		workers:   make(map[string]*ingest.Worker),
		fed:       make(map[string]map[int32]source.Record),
		committed: make(map[string]map[int32]int64),
	}
}

// Configure parses options into the facade's Config. Permitted from
// Uninitialized or Configured (idempotent overwrite).
func (e *Engine) Configure(options map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Uninitialized && e.state != Configured {
		return lifecycleErr("configure", e.state)
	}
	cfg, err := config.FromMap(options)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.state = Configured
	return nil
}

// Init opens the analytic engine, constructs the resolver, and starts a
// worker per declared topic. Fails if called twice.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Configured {
		return lifecycleErr("init", e.state)
	}

	logger, err := logging.New(e.cfg.LogLevel)
	if err != nil {
		return kawaierr.New(kawaierr.KindLifecycle, "failed to build logger", err)
	}
	e.logger = logger
	e.metrics = metrics.New()

	if e.cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(e.metrics.Registerer(), promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: e.cfg.MetricsListen, Handler: mux}
		e.metricsSrv = srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorw("metrics HTTP handler failed", "error", err)
			}
		}()
	}

	client := registry.NewClientForURL(e.cfg.SchemaRegistryURL)
	e.dispatcher = translate.NewDispatcher()
	e.resolver = registry.NewResolver(client, e.dispatcher, logger)
	decoder := decode.NewDecoder()

	sinkEngine, err := sink.Open("")
	if err != nil {
		return err
	}
	e.sinkEngine = sinkEngine

	src, err := source.Open(brokersFromExtra(e.cfg.Extra), e.cfg.Topics, e.cfg.GroupID)
	if err != nil {
		sinkEngine.Close()
		return err
	}
	e.src = src

	ctx, cancel := context.WithCancel(context.Background())
	e.workerCancel = cancel

	for _, topic := range e.cfg.Topics {
		w, err := ingest.NewWorker(topic, e.cfg, e.resolver, e.dispatcher, decoder, sinkEngine, e.metrics, logger)
		if err != nil {
			cancel()
			sinkEngine.Close()
			src.Close()
			return err
		}
		e.workers[topic] = w
		e.fed[topic] = make(map[int32]source.Record)
		e.committed[topic] = make(map[int32]int64)
		e.wg.Add(1)
		go func(w *ingest.Worker) {
			defer e.wg.Done()
			w.Run(ctx)
		}(w)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.commitLoop(ctx)
	}()

	e.state = Running
	logger.Infow("engine started", "topics", e.cfg.Topics)
	return nil
}

func (e *Engine) pollLoop(ctx context.Context) {
	for ctx.Err() == nil {
		recs, err := e.src.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Warnw("log source poll failed", "error", err)
			continue
		}
		for _, rec := range recs {
			e.mu.Lock()
			w, ok := e.workers[rec.Topic]
			e.mu.Unlock()
			if !ok {
				continue
			}
			e.fedMu.Lock()
			if e.fed[rec.Topic] == nil {
				e.fed[rec.Topic] = make(map[int32]source.Record)
			}
			e.fed[rec.Topic][rec.Partition] = rec
			e.fedMu.Unlock()
			w.Feed(rec)
		}
	}
}

// commitLoop periodically acknowledges, to the log source, the highest
// offset each worker has processed per partition (inserted, or skipped as a
// bad record). A restart resumes after the last commit rather than
// replaying the whole log.
func (e *Engine) commitLoop(ctx context.Context) {
	ticker := time.NewTicker(commitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.commitProcessed(context.Background())
			return
		case <-ticker.C:
			e.commitProcessed(ctx)
		}
	}
}

// commitProcessed commits the latest fed record on every partition whose
// offset a worker has already processed (inserted, or skipped after a
// decode or row-shaping failure), skipping partitions already committed at
// or past that offset.
func (e *Engine) commitProcessed(ctx context.Context) {
	e.mu.Lock()
	workers := make(map[string]*ingest.Worker, len(e.workers))
	for topic, w := range e.workers {
		workers[topic] = w
	}
	e.mu.Unlock()

	var toCommit []source.Record
	e.fedMu.Lock()
	for topic, w := range workers {
		for partition, offset := range w.Processed() {
			rec, ok := e.fed[topic][partition]
			if !ok || rec.Offset != offset {
				continue
			}
			if e.committed[topic] == nil {
				e.committed[topic] = make(map[int32]int64)
			}
			if last, ok := e.committed[topic][partition]; ok && last >= offset {
				continue
			}
			e.committed[topic][partition] = offset
			toCommit = append(toCommit, rec)
		}
	}
	e.fedMu.Unlock()

	if len(toCommit) == 0 {
		return
	}
	if err := e.src.Commit(ctx, toCommit...); err != nil {
		e.logger.Warnw("failed to commit log source offsets", "error", err)
	}
}

// Sync returns only once every worker has caught up to the high-water mark
// observed (from the log source, via the poll loop) at the moment Sync was
// called.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	if e.state != Running {
		state := e.state
		e.mu.Unlock()
		return lifecycleErr("sync", state)
	}
	workers := make(map[string]*ingest.Worker, len(e.workers))
	for topic, w := range e.workers {
		workers[topic] = w
	}
	e.mu.Unlock()

	e.fedMu.Lock()
	targets := make(map[string]map[int32]int64, len(e.fed))
	for topic, parts := range e.fed {
		cp := make(map[int32]int64, len(parts))
		for p, rec := range parts {
			cp[p] = rec.Offset
		}
		targets[topic] = cp
	}
	e.fedMu.Unlock()

	for topic, target := range targets {
		w, ok := workers[topic]
		if !ok || len(target) == 0 {
			continue
		}
		if err := w.WaitFor(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

// Close stops workers, drains pending inserts, and releases every
// long-lived resource. Individual release failures are logged, not
// propagated, and never block the rest of shutdown.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.state != Running {
		state := e.state
		e.mu.Unlock()
		return lifecycleErr("close", state)
	}
	e.state = Closed
	cancel := e.workerCancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	if e.metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.metricsSrv.Shutdown(shutdownCtx); err != nil {
			e.logger.Errorw("failed to stop metrics HTTP handler", "error", err)
		}
		shutdownCancel()
	}

	if e.src != nil {
		e.src.Close()
	}
	if e.sinkEngine != nil {
		if err := e.sinkEngine.Close(); err != nil {
			e.logger.Errorw("failed to close analytic engine", "error", err)
		}
	}
	if e.resolver != nil {
		e.resolver.ClearCache()
	}
	e.logger.Infow("engine closed")
	_ = e.logger.Sync()
	return nil
}

// SchemaBindings exposes every resolved (topic, role) binding for
// introspection and debugging.
func (e *Engine) SchemaBindings() []registry.Binding {
	e.mu.Lock()
	resolver := e.resolver
	e.mu.Unlock()
	if resolver == nil {
		return nil
	}
	return resolver.Bindings()
}

// State reports the facade's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func lifecycleErr(op string, state State) error {
	return kawaierr.New(kawaierr.KindLifecycle, fmt.Sprintf("%s not permitted from state %s", op, state), nil)
}

func brokersFromExtra(extra map[string]string) []string {
	raw, ok := extra["kafka.bootstrap.servers"]
	if !ok || raw == "" {
		return []string{"localhost:9092"}
	}
	return strings.Split(raw, ",")
}

var (
	instanceMu sync.Mutex
	singleton  *Engine
)

// Instance lazily constructs the process-wide singleton.
func Instance() *Engine {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if singleton == nil {
		singleton = New()
	}
	return singleton
}

// CloseInstance tears down the process-wide singleton, if one exists. A
// singleton that never reached Running holds no resources and is simply
// dropped.
func CloseInstance() error {
	instanceMu.Lock()
	e := singleton
	singleton = nil
	instanceMu.Unlock()
	if e == nil || e.State() != Running {
		return nil
	}
	return e.Close()
}
