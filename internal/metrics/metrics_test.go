package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/kcache/kawai/internal/metrics"
)

func TestRegistry_CountersIncrement(t *testing.T) {
	r := metrics.New()

	r.DecodeErrors.WithLabelValues("t1").Inc()
	r.RowErrors.WithLabelValues("t1").Inc()
	r.RowsInserted.WithLabelValues("t1").Add(3)
	r.MarkDegraded("t1")

	assert.Equal(t, float64(1), testutil.ToFloat64(r.DecodeErrors.WithLabelValues("t1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.RowErrors.WithLabelValues("t1")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.RowsInserted.WithLabelValues("t1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.TopicDegraded.WithLabelValues("t1")))
}
