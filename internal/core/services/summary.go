package services

import (
	"math"
	"slices"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// Summarise builds the run-level report from the outcomes of a run.
func Summarise(table domain.MetricsTable, outcomes []domain.ParticipantOutcome) domain.RunSummary {
	s := domain.RunSummary{
		Total:            len(outcomes),
		WithConversation: table.WithConversation(),
		UserTurns:        DescribeColumn(table.UserTurnCounts()),
		UserWords:        DescribeColumn(table.UserWordCounts()),
	}
	for _, o := range outcomes {
		switch {
		case o.Succeeded() && o.Reason == domain.ReasonEmpty:
			s.Succeeded++
			s.Empty++
		case o.Succeeded():
			s.Succeeded++
		default:
			s.Failed++
		}
	}
	return s
}

// DescribeColumn computes count, mean, sample standard deviation, min,
// quartiles and max of values. Quartiles use linear interpolation between
// closest ranks. An empty column yields NaN statistics with Count 0, and a
// single value has NaN standard deviation.
func DescribeColumn(values []float64) domain.Describe {
	d := domain.Describe{Count: len(values)}
	if len(values) == 0 {
		nan := math.NaN()
		d.Mean, d.Std, d.Min, d.P25, d.P50, d.P75, d.Max = nan, nan, nan, nan, nan, nan, nan
		return d
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	d.Mean = sum / float64(len(sorted))

	if len(sorted) > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - d.Mean) * (v - d.Mean)
		}
		d.Std = math.Sqrt(sq / float64(len(sorted)-1))
	} else {
		d.Std = math.NaN()
	}

	d.Min = sorted[0]
	d.Max = sorted[len(sorted)-1]
	d.P25 = quantile(sorted, 0.25)
	d.P50 = quantile(sorted, 0.50)
	d.P75 = quantile(sorted, 0.75)
	return d
}

// quantile returns the q-th quantile of sorted using linear interpolation.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
