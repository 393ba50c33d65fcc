package metrics

import (
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	stepsFamily           = "hospital_booking_steps_total"
	reservationsFamily    = "hospital_reservations_operations_total"
	checkoutsFamily       = "hospital_payments_checkouts_total"
	checkoutLatencyFamily = "hospital_payments_checkout_latency_seconds"
)

// Snapshot is the admin view of booking counters.
type Snapshot struct {
	Steps         map[string]map[string]int64 `json:"steps"`
	Reservations  map[string]int64            `json:"reservations"`
	Checkouts     map[string]map[string]int64 `json:"checkouts"`
	CheckoutCount int64                       `json:"checkout_calls"`
	CheckoutP95Ms float64                     `json:"checkout_p95_ms"`
}

// TakeSnapshot reads the booking families from gatherer. Gather errors
// produce an empty snapshot.
func TakeSnapshot(gatherer prometheus.Gatherer) Snapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	out := Snapshot{
		Steps:        map[string]map[string]int64{},
		Reservations: map[string]int64{},
		Checkouts:    map[string]map[string]int64{},
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return out
	}

	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case stepsFamily:
			collectPairs(mf, "step", "outcome", out.Steps)
		case checkoutsFamily:
			collectPairs(mf, "provider", "outcome", out.Checkouts)
		case reservationsFamily:
			for _, metric := range mf.Metric {
				if metric == nil || metric.GetCounter() == nil {
					continue
				}
				out.Reservations[labelValue(metric, "outcome")] += int64(metric.GetCounter().GetValue())
			}
		case checkoutLatencyFamily:
			count, p95 := aggregateQuantile(mf, 0.95)
			out.CheckoutCount = int64(count)
			out.CheckoutP95Ms = p95 * 1000.0
		}
	}
	return out
}

func collectPairs(mf *dto.MetricFamily, outer, inner string, dst map[string]map[string]int64) {
	for _, metric := range mf.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		o := labelValue(metric, outer)
		if dst[o] == nil {
			dst[o] = map[string]int64{}
		}
		dst[o][labelValue(metric, inner)] += int64(metric.GetCounter().GetValue())
	}
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// aggregateQuantile merges histograms across label sets and estimates q.
func aggregateQuantile(mf *dto.MetricFamily, q float64) (uint64, float64) {
	cumulativeByUpper := map[float64]uint64{}
	var sampleCount uint64
	for _, metric := range mf.Metric {
		if metric == nil {
			continue
		}
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		sampleCount += h.GetSampleCount()
		for _, b := range h.Bucket {
			if b == nil {
				continue
			}
			cumulativeByUpper[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if sampleCount == 0 || len(cumulativeByUpper) == 0 {
		return sampleCount, 0
	}
	// Client histograms omit the +Inf bucket; it holds every sample.
	cumulativeByUpper[math.Inf(1)] = sampleCount

	uppers := make([]float64, 0, len(cumulativeByUpper))
	for upper := range cumulativeByUpper {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)
	return sampleCount, histogramQuantile(q, sampleCount, uppers, cumulativeByUpper)
}

func histogramQuantile(q float64, total uint64, uppers []float64, cumulativeByUpper map[float64]uint64) float64 {
	if total == 0 || q <= 0 {
		return 0
	}
	target := q * float64(total)
	var prevUpper float64
	var prevCum float64

	for _, upper := range uppers {
		cum := float64(cumulativeByUpper[upper])
		if cum < target {
			prevUpper = upper
			prevCum = cum
			continue
		}

		bucketCount := cum - prevCum
		if bucketCount <= 0 || upper == prevUpper {
			return upper
		}
		if math.IsInf(upper, 1) {
			return prevUpper
		}

		fraction := (target - prevCum) / bucketCount
		if fraction > 1 {
			fraction = 1
		}
		return prevUpper + fraction*(upper-prevUpper)
	}

	return prevUpper
}
