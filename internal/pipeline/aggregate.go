package pipeline

import (
	"sort"
	"time"

	"github.com/fairclaim/fos-cli/internal/model"
)

// topN is the cap on frequency tables in run statistics.
const topN = 20

// BuildStatistics derives run-level aggregates from a set of classified
// decisions. Output ordering is deterministic: frequency tables sort by
// count descending, then label ascending.
func BuildStatistics(decisions []model.ClassifiedDecision, skipped, fetchFailures int) *model.RunStatistics {
	stats := &model.RunStatistics{
		SchemaVersion:        model.SchemaVersion,
		TotalProcessed:       len(decisions),
		Skipped:              skipped,
		FetchFailures:        fetchFailures,
		ProcessedAt:          time.Now().UTC(),
		ByCategory:           make(map[model.Category]int),
		ByOutcome:            make(map[string]int),
		UpheldRateByCategory: make(map[model.Category]model.CategoryRate),
	}

	evidence := make(map[string]int)
	legal := make(map[string]int)
	var amounts []float64

	for _, d := range decisions {
		stats.ByCategory[d.ComplaintCategory]++
		stats.ByOutcome[d.Outcome]++

		rate := stats.UpheldRateByCategory[d.ComplaintCategory]
		rate.Total++
		if d.Upheld() {
			rate.Upheld++
		}
		stats.UpheldRateByCategory[d.ComplaintCategory] = rate

		for _, e := range d.EvidenceCited {
			evidence[e]++
		}
		for _, l := range d.LegalReferences {
			legal[l]++
		}
		if d.CompensationAmount != nil {
			amounts = append(amounts, *d.CompensationAmount)
		}
	}

	for cat, rate := range stats.UpheldRateByCategory {
		if rate.Total > 0 {
			rate.Rate = float64(rate.Upheld) / float64(rate.Total)
		}
		stats.UpheldRateByCategory[cat] = rate
	}

	stats.CommonEvidenceTypes = topLabels(evidence, topN)
	stats.CommonLegalReferences = topLabels(legal, topN)
	stats.AverageCompensation = mean(amounts)
	stats.MedianCompensation = median(amounts)

	return stats
}

// topLabels converts a frequency map into a sorted, capped table.
func topLabels(freq map[string]int, n int) []model.LabelCount {
	out := make([]model.LabelCount, 0, len(freq))
	for label, count := range freq {
		out = append(out, model.LabelCount{Label: label, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
