package registry_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kcache/kawai/internal/registry"
)

// fakeParser records every call it receives and can be told to fail for a
// given schema text, simulating a malformed schema.
type fakeParser struct {
	mu       sync.Mutex
	calls    int
	failText string
}

func (p *fakeParser) Parse(schemaType registry.SchemaType, text string, refs []registry.ResolvedRef) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if text == p.failText {
		return nil, errors.New("malformed schema")
	}
	return map[string]any{"type": schemaType, "text": text}, nil
}

func newTestResolver(t *testing.T, client registry.Client, parser registry.Parser) *registry.Resolver {
	t.Helper()
	logger := zap.NewNop().Sugar()
	return registry.NewResolver(client, parser, logger)
}

func TestResolve_Primitive_NoRegistryIO(t *testing.T) {
	client := registry.NewMockClient()
	parser := &fakeParser{}
	r := newTestResolver(t, client, parser)

	resolved, err := r.Resolve("t1", registry.RoleValue, registry.Directive{Kind: registry.DirectivePrimitive, Primitive: registry.Int})
	require.NoError(t, err)
	assert.True(t, resolved.IsPrimitive())
	assert.Equal(t, registry.Int, resolved.Tag())
	assert.Equal(t, 0, parser.calls)
}

func TestResolve_Latest_Structural(t *testing.T) {
	client := registry.NewMockClient()
	_, err := client.Register(registry.Subject("t2", registry.RoleValue), registry.SchemaTypeAvro, `{"type":"record","name":"r","fields":[]}`)
	require.NoError(t, err)

	parser := &fakeParser{}
	r := newTestResolver(t, client, parser)

	resolved, err := r.Resolve("t2", registry.RoleValue, registry.Directive{Kind: registry.DirectiveLatest})
	require.NoError(t, err)
	require.False(t, resolved.IsPrimitive())
	assert.Equal(t, registry.FamilyRecord, resolved.Parsed().Family)
	assert.Equal(t, 1, parser.calls)
}

func TestResolve_Latest_FallsBackToBinaryWhenUnreachable(t *testing.T) {
	client := registry.NewMockClient() // nothing registered => lookup fails
	parser := &fakeParser{}
	r := newTestResolver(t, client, parser)

	resolved, err := r.Resolve("t3", registry.RoleValue, registry.Directive{Kind: registry.DirectiveLatest})
	require.NoError(t, err)
	assert.True(t, resolved.IsPrimitive())
	assert.Equal(t, registry.Binary, resolved.Tag())
}

func TestResolve_Inline_FallsBackOnParseFailure(t *testing.T) {
	client := registry.NewMockClient()
	parser := &fakeParser{failText: "broken"}
	r := newTestResolver(t, client, parser)

	resolved, err := r.Resolve("t4", registry.RoleValue, registry.Directive{
		Kind:       registry.DirectiveInline,
		SchemaType: registry.SchemaTypeJSON,
		Text:       "broken",
	})
	require.NoError(t, err)
	assert.True(t, resolved.IsPrimitive())
	assert.Equal(t, registry.Binary, resolved.Tag())
}

func TestResolve_CachesPerTopicRole(t *testing.T) {
	client := registry.NewMockClient()
	_, err := client.Register(registry.Subject("t5", registry.RoleValue), registry.SchemaTypeAvro, `{"type":"int"}`)
	require.NoError(t, err)

	parser := &fakeParser{}
	r := newTestResolver(t, client, parser)

	d := registry.Directive{Kind: registry.DirectiveLatest}
	_, err = r.Resolve("t5", registry.RoleValue, d)
	require.NoError(t, err)
	_, err = r.Resolve("t5", registry.RoleValue, d)
	require.NoError(t, err)

	assert.Equal(t, 1, parser.calls, "second resolution should hit the cache, not reparse")
}

func TestResolve_ConcurrentFirstCallsCoalesce(t *testing.T) {
	client := registry.NewMockClient()
	_, err := client.Register(registry.Subject("t6", registry.RoleValue), registry.SchemaTypeAvro, `{"type":"int"}`)
	require.NoError(t, err)

	parser := &fakeParser{}
	r := newTestResolver(t, client, parser)

	d := registry.Directive{Kind: registry.DirectiveLatest}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve("t6", registry.RoleValue, d)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, parser.calls, 2, "singleflight should coalesce concurrent first resolutions")
}

func TestBindings_RecordsScope(t *testing.T) {
	client := registry.NewMockClient()
	_, err := client.Register(registry.Subject("t7", registry.RoleValue), registry.SchemaTypeAvro, `{"type":"int"}`)
	require.NoError(t, err)

	parser := &fakeParser{}
	r := newTestResolver(t, client, parser)

	_, err = r.Resolve("t7", registry.RoleValue, registry.Directive{Kind: registry.DirectiveLatest})
	require.NoError(t, err)

	bindings := r.Bindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, registry.ScopeRegistered, bindings[0].Scope)
}

func TestClearCache_DropsBindingsAndAllowsReparse(t *testing.T) {
	client := registry.NewMockClient()
	_, err := client.Register(registry.Subject("t8", registry.RoleValue), registry.SchemaTypeAvro, `{"type":"int"}`)
	require.NoError(t, err)

	parser := &fakeParser{}
	r := newTestResolver(t, client, parser)

	d := registry.Directive{Kind: registry.DirectiveLatest}
	_, err = r.Resolve("t8", registry.RoleValue, d)
	require.NoError(t, err)

	r.ClearCache()
	assert.Empty(t, r.Bindings())

	_, err = r.Resolve("t8", registry.RoleValue, d)
	require.NoError(t, err)
	assert.Equal(t, 2, parser.calls)
}
