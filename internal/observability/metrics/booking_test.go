package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveStep("reserve_slot", "ok", 20*time.Millisecond)
	m.ObserveStep("reserve_slot", "conflict", 10*time.Millisecond)
	m.ObserveStep("reserve_slot", "ok", 15*time.Millisecond)
	m.ObserveReservation("acquired")
	m.ObserveReservation("conflict")
	m.ObserveReservation("acquired")
	m.ObserveCheckout("payos", "fallback_timeout", 5*time.Second)
	m.ObserveCheckout("payos", "ok", 200*time.Millisecond)

	snap := TakeSnapshot(reg)
	assert.Equal(t, int64(2), snap.Steps["reserve_slot"]["ok"])
	assert.Equal(t, int64(1), snap.Steps["reserve_slot"]["conflict"])
	assert.Equal(t, int64(2), snap.Reservations["acquired"])
	assert.Equal(t, int64(1), snap.Reservations["conflict"])
	assert.Equal(t, int64(1), snap.Checkouts["payos"]["ok"])
	assert.Equal(t, int64(2), snap.CheckoutCount)
	assert.Greater(t, snap.CheckoutP95Ms, 200.0)
}

func TestBookingMetricsDefaultRegistry(t *testing.T) {
	// Registers once against the process default registry.
	m := NewBookingMetrics(nil)
	m.ObserveStep("symptom_analysis", "ok", time.Millisecond)
	snap := TakeSnapshot(nil)
	assert.GreaterOrEqual(t, snap.Steps["symptom_analysis"]["ok"], int64(1))
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveStep("get_doctors", "ok", time.Millisecond)
	m.ObserveReservation("acquired")
	m.ObserveCheckout("mock", "ok", time.Millisecond)
}

func TestTakeSnapshotEmptyRegistry(t *testing.T) {
	snap := TakeSnapshot(prometheus.NewRegistry())
	require.NotNil(t, snap.Steps)
	assert.Empty(t, snap.Steps)
	assert.Zero(t, snap.CheckoutP95Ms)
}

func TestHistogramQuantileInterpolates(t *testing.T) {
	uppers := []float64{0.1, 0.5, 1}
	cum := map[float64]uint64{0.1: 50, 0.5: 90, 1: 100}
	got := histogramQuantile(0.95, 100, uppers, cum)
	assert.InDelta(t, 0.75, got, 0.0001)
}
