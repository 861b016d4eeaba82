/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-dbmigrate/change"
)

func TestPrometheusMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()
	reg := prometheus.NewRegistry()
	pm.MustRegisterIn(reg)

	pm.ObserveExecution(change.KindMigration, change.DirectionUp, 150*time.Millisecond, nil)
	pm.ObserveExecution(change.KindMigration, change.DirectionUp, time.Second, errors.New("syntax error"))
	pm.ObserveExecution(change.KindSeed, change.DirectionUp, 10*time.Millisecond, nil)

	require.Equal(t, 1.0, testutil.ToFloat64(pm.ExecutionsTotal.WithLabelValues("migration", "up", StatusOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(pm.ExecutionsTotal.WithLabelValues("migration", "up", StatusError)))
	require.Equal(t, 1.0, testutil.ToFloat64(pm.ExecutionsTotal.WithLabelValues("seed", "up", StatusOK)))
	require.Equal(t, 0.0, testutil.ToFloat64(pm.ExecutionsTotal.WithLabelValues("migration", "down", StatusOK)))

	require.Equal(t, 2, testutil.CollectAndCount(pm.ExecutionDuration))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.ElementsMatch(t, []string{
		"dbmigrate_change_executions_total",
		"dbmigrate_change_execution_duration_seconds",
	}, names)
}

func TestPrometheusMetricsRegisterAndUnregister(t *testing.T) {
	pm := NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{
		Namespace:   "app",
		ConstLabels: prometheus.Labels{"service": "billing"},
	})
	require.NotPanics(t, pm.MustRegister)
	pm.Unregister()
	require.NotPanics(t, pm.MustRegister)
	pm.Unregister()
}

func TestPrometheusMetricsUnregisterFrom(t *testing.T) {
	pm := NewPrometheusMetrics()
	reg := prometheus.NewRegistry()
	pm.MustRegisterIn(reg)
	pm.ObserveExecution(change.KindSeed, change.DirectionUp, time.Millisecond, nil)

	pm.UnregisterFrom(reg)
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)

	// Metrics can be registered again in the same registry.
	require.NotPanics(t, func() { pm.MustRegisterIn(reg) })
	pm.UnregisterFrom(reg)

	// Unregistering from the default registry doesn't touch a custom one.
	pm.MustRegisterIn(reg)
	pm.Unregister()
	families, err = reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 2)
}
