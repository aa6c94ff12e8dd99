// Package ingest implements one worker per topic, driving
// resolve -> decode -> shape -> insert in offset order. Per-record
// decode/row errors are logged and skipped; insert errors are
// worker-fatal and degrade the topic.
package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kcache/kawai/internal/column"
	"github.com/kcache/kawai/internal/config"
	"github.com/kcache/kawai/internal/decode"
	"github.com/kcache/kawai/internal/kawaierr"
	"github.com/kcache/kawai/internal/metrics"
	"github.com/kcache/kawai/internal/registry"
	"github.com/kcache/kawai/internal/row"
	"github.com/kcache/kawai/internal/sink"
	"github.com/kcache/kawai/internal/source"
	"github.com/kcache/kawai/internal/translate"
)

// Worker drives one topic's ingest loop, serialized on that topic's table
// (at-most-one concurrent table writer per topic).
type Worker struct {
	Topic string

	resolver   *registry.Resolver
	dispatcher *translate.Dispatcher
	decoder    *decode.Decoder
	table      *sink.Table
	metrics    *metrics.Registry
	logger     *zap.SugaredLogger

	keyDirective   registry.Directive
	valueDirective registry.Directive

	records chan source.Record

	mu          sync.Mutex
	cond        *sync.Cond
	processed   map[int32]int64
	degraded    bool
	degradedErr error
}

// NewWorker resolves the topic's key and value schemas, translates them to
// root columns, and creates (or verifies) the topic's table, run once at
// worker construction.
func NewWorker(topic string, cfg *config.Config, resolver *registry.Resolver, dispatcher *translate.Dispatcher, decoder *decode.Decoder, engine *sink.Engine, m *metrics.Registry, logger *zap.SugaredLogger) (*Worker, error) {
	keyDirective := cfg.KeyDirective(topic)
	valueDirective := cfg.ValueDirective(topic)

	keyColumn, err := resolveColumn(resolver, dispatcher, topic, registry.RoleKey, keyDirective, true)
	if err != nil {
		return nil, err
	}
	valueColumn, err := resolveColumn(resolver, dispatcher, topic, registry.RoleValue, valueDirective, false)
	if err != nil {
		return nil, err
	}

	table, err := engine.EnsureTable(topic, keyColumn, valueColumn)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		Topic:          topic,
		resolver:       resolver,
		dispatcher:     dispatcher,
		decoder:        decoder,
		table:          table,
		metrics:        m,
		logger:         logger,
		keyDirective:   keyDirective,
		valueDirective: valueDirective,
		records:        make(chan source.Record, 256),
		processed:      make(map[int32]int64),
	}
	w.cond = sync.NewCond(&w.mu)
	return w, nil
}

func resolveColumn(resolver *registry.Resolver, dispatcher *translate.Dispatcher, topic string, role registry.Role, d registry.Directive, isKey bool) (*column.Column, error) {
	resolved, err := resolver.Resolve(topic, role, d)
	if err != nil {
		return nil, err
	}
	if resolved.IsPrimitive() {
		return translate.PrimitiveColumn(resolved.Tag())
	}
	return dispatcher.ToColumn(resolved.Parsed(), isKey)
}

// Feed enqueues a record for processing. It blocks if the worker's queue is
// full, providing backpressure to the poll loop.
func (w *Worker) Feed(rec source.Record) {
	w.records <- rec
}

// Degraded reports whether a fatal condition has halted this topic's
// ingest (insert failures are worker-fatal).
func (w *Worker) Degraded() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.degraded, w.degradedErr
}

// Processed returns a snapshot of the latest processed (partition, offset)
// pairs, used by the engine's commit loop to decide which offsets to commit.
func (w *Worker) Processed() map[int32]int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	snapshot := make(map[int32]int64, len(w.processed))
	for p, o := range w.processed {
		snapshot[p] = o
	}
	return snapshot
}

// WaitFor blocks until every partition named in target has been processed
// through at least its recorded offset, or ctx is done, or the worker
// degrades. This is the building block for Engine.sync()'s barrier.
func (w *Worker) WaitFor(ctx context.Context, target map[int32]int64) error {
	done := make(chan struct{})
	go func() {
		w.mu.Lock()
		for !w.reached(target) && !w.degraded {
			w.cond.Wait()
		}
		w.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		w.mu.Lock()
		degraded, derr := w.degraded, w.degradedErr
		w.mu.Unlock()
		if degraded {
			return derr
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reached reports whether processed has caught up to every partition in
// target. Caller must hold w.mu.
func (w *Worker) reached(target map[int32]int64) bool {
	for p, o := range target {
		got, ok := w.processed[p]
		if !ok || got < o {
			return false
		}
	}
	return true
}

// Run processes records until ctx is done or the worker degrades. It is
// the only writer of w.processed and w.degraded.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-w.records:
			if !ok {
				return
			}
			if w.degradedNow() {
				return
			}
			w.process(rec)
		}
	}
}

func (w *Worker) degradedNow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.degraded
}

func (w *Worker) process(rec source.Record) {
	key, keyCol, err := w.decodeSide(registry.RoleKey, w.keyDirective, rec.Key, true)
	if err != nil {
		w.recordSkip(rec, err)
		return
	}
	value, valueCol, err := w.decodeSide(registry.RoleValue, w.valueDirective, rec.Value, false)
	if err != nil {
		w.recordSkip(rec, err)
		return
	}

	shaped, err := row.Shape(key, keyCol, value, valueCol)
	if err != nil {
		w.logger.Warnw("row shaping failed, skipping record", "topic", w.Topic, "partition", rec.Partition, "offset", rec.Offset, "error", err)
		w.metrics.RowErrors.WithLabelValues(w.Topic).Inc()
		w.advance(rec.Partition, rec.Offset)
		return
	}

	if err := w.table.Insert(shaped); err != nil {
		w.degrade(err)
		w.logger.Errorw("insert failed, topic marked degraded", "topic", w.Topic, "partition", rec.Partition, "offset", rec.Offset, "error", err)
		w.metrics.MarkDegraded(w.Topic)
		return
	}

	w.metrics.RowsInserted.WithLabelValues(w.Topic).Inc()
	w.advance(rec.Partition, rec.Offset)
}

// decodeSide resolves (from cache) and decodes one side of a record. A
// null/empty byte slice decodes to nil without touching the magic byte,
// matching the tombstone-as-null-row rule for values.
func (w *Worker) decodeSide(role registry.Role, d registry.Directive, payload []byte, isKey bool) (any, *column.Column, error) {
	resolved, err := w.resolver.Resolve(w.Topic, role, d)
	if err != nil {
		return nil, nil, err
	}

	if resolved.IsPrimitive() {
		col, err := translate.PrimitiveColumn(resolved.Tag())
		if err != nil {
			return nil, nil, err
		}
		if len(payload) == 0 {
			return nil, col, nil
		}
		v, err := decode.DecodePrimitive(resolved.Tag(), payload)
		return v, col, err
	}

	col, err := w.dispatcher.ToColumn(resolved.Parsed(), isKey)
	if err != nil {
		return nil, nil, err
	}
	if len(payload) == 0 {
		return nil, col, nil
	}

	env, err := decode.ParseEnvelope(payload)
	if err != nil {
		return nil, nil, err
	}
	v, err := w.decoder.Decode(resolved.Parsed(), env.Body)
	return v, col, err
}

func (w *Worker) recordSkip(rec source.Record, err error) {
	w.logger.Warnw("decode failed, skipping record", "topic", w.Topic, "partition", rec.Partition, "offset", rec.Offset, "error", err)
	w.metrics.DecodeErrors.WithLabelValues(w.Topic).Inc()
	w.advance(rec.Partition, rec.Offset)
}

func (w *Worker) advance(partition int32, offset int64) {
	w.mu.Lock()
	w.processed[partition] = offset
	w.cond.Broadcast()
	w.mu.Unlock()
}

func (w *Worker) degrade(err error) {
	w.mu.Lock()
	w.degraded = true
	w.degradedErr = kawaierr.New(kawaierr.KindSink, "topic degraded after insert failure", err)
	w.cond.Broadcast()
	w.mu.Unlock()
}
