package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/riferrei/srclient"
)

// MockURLPrefix is the reserved in-process sentinel for tests: when
// schema.registry.url matches this prefix, resolution never leaves the
// process and registered schemas live in the engine's own mock client.
const MockURLPrefix = "mock://"

// IsMockURL reports whether url is the reserved in-process test sentinel.
func IsMockURL(url string) bool { return strings.HasPrefix(url, MockURLPrefix) }

// RawSchema is what a registry lookup returns before translation: the id,
// its schema language, its text, and any named subschema references.
type RawSchema struct {
	ID         int
	SchemaType SchemaType
	Text       string
	Refs       []Reference
}

// Client is the narrow registry contract resolution needs:
// latest-for-subject, by-id, and register. Backed either by a real
// Confluent-compatible registry (srclient) or, under the mock sentinel,
// an in-process fake.
type Client interface {
	LatestForSubject(subject string) (RawSchema, error)
	ByID(id int) (RawSchema, error)
	Register(subject string, schemaType SchemaType, text string) (int, error)
}

// NewClientForURL builds the real or mock client depending on url.
func NewClientForURL(url string) Client {
	if IsMockURL(url) {
		return NewMockClient()
	}
	return NewClient(url)
}

type confluentClient struct {
	sr *srclient.SchemaRegistryClient
}

// NewClient wraps a real Confluent-compatible schema registry at url.
func NewClient(url string) Client {
	return &confluentClient{sr: srclient.CreateSchemaRegistryClient(url)}
}

func (c *confluentClient) LatestForSubject(subject string) (RawSchema, error) {
	s, err := c.sr.GetLatestSchema(subject)
	if err != nil {
		return RawSchema{}, fmt.Errorf("registry: latest schema for subject %q: %w", subject, err)
	}
	return rawFromSrclient(s), nil
}

func (c *confluentClient) ByID(id int) (RawSchema, error) {
	s, err := c.sr.GetSchema(id)
	if err != nil {
		return RawSchema{}, fmt.Errorf("registry: schema by id %d: %w", id, err)
	}
	return rawFromSrclient(s), nil
}

func (c *confluentClient) Register(subject string, schemaType SchemaType, text string) (int, error) {
	s, err := c.sr.CreateSchema(subject, text, toSrclientType(schemaType))
	if err != nil {
		return 0, fmt.Errorf("registry: register schema for subject %q: %w", subject, err)
	}
	return s.ID(), nil
}

func rawFromSrclient(s *srclient.Schema) RawSchema {
	st := SchemaTypeAvro
	if t := s.SchemaType(); t != nil {
		switch *t {
		case srclient.Json:
			st = SchemaTypeJSON
		case srclient.Protobuf:
			st = SchemaTypeProtobuf
		}
	}
	return RawSchema{ID: s.ID(), SchemaType: st, Text: s.Schema()}
}

func toSrclientType(t SchemaType) srclient.SchemaType {
	switch t {
	case SchemaTypeJSON:
		return srclient.Json
	case SchemaTypeProtobuf:
		return srclient.Protobuf
	default:
		return srclient.Avro
	}
}

// mockClient is the sentinel-URL fake: process-local maps guarded by a
// mutex. Each client starts empty; Engine.Close clears the resolver's
// cached bindings but does not reset these maps.
type mockClient struct {
	mu        sync.Mutex
	bySubject map[string]RawSchema
	byID      map[int]RawSchema
	nextID    int
}

// NewMockClient builds an empty in-process registry fake.
func NewMockClient() Client {
	return &mockClient{
		bySubject: make(map[string]RawSchema),
		byID:      make(map[int]RawSchema),
		nextID:    1,
	}
}

func (c *mockClient) LatestForSubject(subject string) (RawSchema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.bySubject[subject]
	if !ok {
		return RawSchema{}, fmt.Errorf("mock registry: no schema registered for subject %q", subject)
	}
	return s, nil
}

func (c *mockClient) ByID(id int) (RawSchema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byID[id]
	if !ok {
		return RawSchema{}, fmt.Errorf("mock registry: no schema with id %d", id)
	}
	return s, nil
}

func (c *mockClient) Register(subject string, schemaType SchemaType, text string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	s := RawSchema{ID: id, SchemaType: schemaType, Text: text}
	c.bySubject[subject] = s
	c.byID[id] = s
	return id, nil
}
