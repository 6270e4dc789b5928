package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegistered(t *testing.T) {
	ValidationsTotal.WithLabelValues("supported").Inc()
	CostUSD.Add(0.01)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["citecheck_validations_total"])
	assert.True(t, names["citecheck_cost_usd_total"])
}

func TestValidationsByStatus(t *testing.T) {
	before := testutil.ToFloat64(ValidationsTotal.WithLabelValues("partial"))
	ValidationsTotal.WithLabelValues("partial").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ValidationsTotal.WithLabelValues("partial")))
}
