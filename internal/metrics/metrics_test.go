package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.BlockProcessed("sky", 10*time.Millisecond)
	m.BlockProcessed("sky", 20*time.Millisecond)
	m.BlockFailed("curve")
	m.ComponentsCreated("sky", 2)
	m.DeltasEmitted("sky", 4)
	m.DecodeFailure("sky")

	require.Equal(t, 2.0, testutil.ToFloat64(m.blocksProcessed.WithLabelValues("sky")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.blocksFailed.WithLabelValues("curve")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.componentsCreated.WithLabelValues("sky")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.deltasEmitted.WithLabelValues("sky")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.decodeFailures.WithLabelValues("sky")))

	_, err = New(reg)
	require.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.BlockProcessed("sky", time.Second)
	m.BlockFailed("sky")
	m.ComponentsCreated("sky", 1)
	m.DeltasEmitted("sky", 1)
	m.DecodeFailure("sky")
}
