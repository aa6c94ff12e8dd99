package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcache/kawai/internal/engine"
	"github.com/kcache/kawai/internal/kawaierr"
)

func testOptions(topic string) map[string]any {
	return map[string]any{
		"topics":                  []string{topic},
		"schema.registry.url":     "mock://",
		"value.serdes":            map[string]any{topic: "binary"},
		"kafka.bootstrap.servers": "localhost:9092",
	}
}

func TestEngine_InitBeforeConfigureFails(t *testing.T) {
	e := engine.New()
	err := e.Init()
	require.Error(t, err)
	assert.True(t, kawaierr.IsLifecycle(err))
}

func TestEngine_SyncBeforeRunningFails(t *testing.T) {
	e := engine.New()
	require.NoError(t, e.Configure(testOptions("t1")))
	err := e.Sync(context.Background())
	assert.True(t, kawaierr.IsLifecycle(err))
}

func TestEngine_CloseBeforeRunningFails(t *testing.T) {
	e := engine.New()
	err := e.Close()
	assert.True(t, kawaierr.IsLifecycle(err))
}

func TestEngine_ConfigureIsIdempotentBeforeInit(t *testing.T) {
	e := engine.New()
	require.NoError(t, e.Configure(testOptions("t1")))
	require.NoError(t, e.Configure(testOptions("t2")))
	assert.Equal(t, engine.Configured, e.State())
}

func TestEngine_FullLifecycle(t *testing.T) {
	e := engine.New()
	require.NoError(t, e.Configure(testOptions("lifecycle")))
	require.NoError(t, e.Init())
	assert.Equal(t, engine.Running, e.State())

	err := e.Init()
	require.Error(t, err)
	assert.True(t, kawaierr.IsLifecycle(err))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = e.Sync(ctx)

	require.NoError(t, e.Close())
	assert.Equal(t, engine.Closed, e.State())

	err = e.Close()
	assert.True(t, kawaierr.IsLifecycle(err))
}

func TestEngine_SchemaBindingsEmptyBeforeInit(t *testing.T) {
	e := engine.New()
	assert.Nil(t, e.SchemaBindings())
}

func TestInstance_IsProcessWideSingleton(t *testing.T) {
	first := engine.Instance()
	second := engine.Instance()
	assert.Same(t, first, second)
	require.NoError(t, engine.CloseInstance())
}
