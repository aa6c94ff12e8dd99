// Package source adapts twmb/franz-go's pull client to the log source's
// external collaborator contract: an ordered stream of (headers, key-bytes,
// value-bytes, partition, offset, timestamp, timestamp-kind, leader-epoch)
// tuples, with replay-from-beginning and commit semantics delegated to the
// broker's consumer-group protocol.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/kcache/kawai/internal/kawaierr"
)

// TimestampKind distinguishes a record's producer-assigned CreateTime from
// a broker-assigned LogAppendTime.
type TimestampKind int

const (
	CreateTime TimestampKind = iota
	LogAppendTime
)

// Record is the pull-style tuple a worker consumes one at a time.
type Record struct {
	Topic         string
	Headers       map[string][][]byte
	Key           []byte
	Value         []byte
	Partition     int32
	Offset        int64
	Timestamp     time.Time
	TimestampKind TimestampKind
	LeaderEpoch   *int32

	raw *kgo.Record
}

// Source wraps a *kgo.Client. Its own internals (the broker) stay external;
// this is the real pull client, not a stub.
type Source struct {
	client *kgo.Client
}

// Open dials the log source for the given topics under the given consumer
// group, replaying from the beginning of the log for a group the broker has
// never committed offsets for.
func Open(brokers []string, topics []string, groupID string) (*Source, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, kawaierr.New(kawaierr.KindConfig, "failed to create log source client", err)
	}
	return &Source{client: client}, nil
}

// Poll pulls the next batch of records, blocking until at least one record
// arrives, a fetch error occurs, or ctx is done.
func (s *Source) Poll(ctx context.Context) ([]Record, error) {
	fetches := s.client.PollFetches(ctx)
	if errs := fetches.Errors(); len(errs) > 0 {
		first := errs[0]
		return nil, kawaierr.New(kawaierr.KindConfig, fmt.Sprintf("log source fetch error on %s[%d]", first.Topic, first.Partition), first.Err)
	}

	var out []Record
	fetches.EachRecord(func(rec *kgo.Record) {
		out = append(out, fromKgoRecord(rec))
	})
	return out, nil
}

// Commit acknowledges that records have been processed, advancing the
// consumer group's committed offsets so a restart resumes after them.
func (s *Source) Commit(ctx context.Context, recs ...Record) error {
	raw := make([]*kgo.Record, 0, len(recs))
	for _, r := range recs {
		if r.raw != nil {
			raw = append(raw, r.raw)
		}
	}
	if len(raw) == 0 {
		return nil
	}
	if err := s.client.CommitRecords(ctx, raw...); err != nil {
		return kawaierr.New(kawaierr.KindSink, "failed to commit log source offsets", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Source) Close() { s.client.Close() }

func fromKgoRecord(rec *kgo.Record) Record {
	headers := make(map[string][][]byte, len(rec.Headers))
	for _, h := range rec.Headers {
		headers[h.Key] = append(headers[h.Key], h.Value)
	}

	kind := CreateTime
	if rec.Attrs.TimestampType() != 0 {
		kind = LogAppendTime
	}

	var epoch *int32
	if rec.LeaderEpoch >= 0 {
		e := rec.LeaderEpoch
		epoch = &e
	}

	return Record{
		Topic:         rec.Topic,
		Headers:       headers,
		Key:           rec.Key,
		Value:         rec.Value,
		Partition:     rec.Partition,
		Offset:        rec.Offset,
		Timestamp:     rec.Timestamp,
		TimestampKind: kind,
		LeaderEpoch:   epoch,
		raw:           rec,
	}
}
