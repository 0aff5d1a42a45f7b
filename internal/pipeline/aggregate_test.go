package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairclaim/fos-cli/internal/model"
)

func ptr(f float64) *float64 { return &f }

func TestBuildStatistics(t *testing.T) {
	decisions := []model.ClassifiedDecision{
		{
			Reference:          "DRN-1",
			ComplaintCategory:  model.CategoryPCP,
			Outcome:            "upheld",
			OutcomeScore:       1.0,
			EvidenceCited:      []string{"agreement", "bank statement"},
			LegalReferences:    []string{"CONC 5.2"},
			CompensationAmount: ptr(100),
		},
		{
			Reference:          "DRN-2",
			ComplaintCategory:  model.CategoryPCP,
			Outcome:            "not upheld",
			OutcomeScore:       0.0,
			EvidenceCited:      []string{"agreement"},
			CompensationAmount: ptr(300),
		},
		{
			Reference:          "DRN-3",
			ComplaintCategory:  model.CategoryUnaffordableLending,
			Outcome:            "partially upheld",
			OutcomeScore:       0.5,
			LegalReferences:    []string{"CONC 5.2", "Consumer Credit Act 1974"},
			CompensationAmount: ptr(200),
		},
	}

	stats := BuildStatistics(decisions, 2, 1)

	assert.Equal(t, model.SchemaVersion, stats.SchemaVersion)
	assert.Equal(t, 3, stats.TotalProcessed)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 1, stats.FetchFailures)
	assert.False(t, stats.ProcessedAt.IsZero())

	assert.Equal(t, 2, stats.ByCategory[model.CategoryPCP])
	assert.Equal(t, 1, stats.ByCategory[model.CategoryUnaffordableLending])
	assert.Equal(t, 1, stats.ByOutcome["upheld"])
	assert.Equal(t, 1, stats.ByOutcome["not upheld"])

	pcp := stats.UpheldRateByCategory[model.CategoryPCP]
	assert.Equal(t, 1, pcp.Upheld)
	assert.Equal(t, 2, pcp.Total)
	assert.Equal(t, 0.5, pcp.Rate)

	unaff := stats.UpheldRateByCategory[model.CategoryUnaffordableLending]
	assert.Equal(t, 1, unaff.Upheld)
	assert.Equal(t, 1.0, unaff.Rate)

	// Count descending, then label ascending.
	require.Len(t, stats.CommonEvidenceTypes, 2)
	assert.Equal(t, model.LabelCount{Label: "agreement", Count: 2}, stats.CommonEvidenceTypes[0])
	assert.Equal(t, model.LabelCount{Label: "bank statement", Count: 1}, stats.CommonEvidenceTypes[1])

	require.Len(t, stats.CommonLegalReferences, 2)
	assert.Equal(t, "CONC 5.2", stats.CommonLegalReferences[0].Label)

	assert.Equal(t, 200.0, stats.AverageCompensation)
	assert.Equal(t, 200.0, stats.MedianCompensation)
}

func TestBuildStatisticsEmpty(t *testing.T) {
	stats := BuildStatistics(nil, 0, 0)
	assert.Equal(t, 0, stats.TotalProcessed)
	assert.Empty(t, stats.ByCategory)
	assert.Empty(t, stats.CommonEvidenceTypes)
	assert.Equal(t, 0.0, stats.AverageCompensation)
	assert.Equal(t, 0.0, stats.MedianCompensation)
}

func TestBuildStatisticsMedianEvenCount(t *testing.T) {
	decisions := []model.ClassifiedDecision{
		{Reference: "DRN-1", CompensationAmount: ptr(100)},
		{Reference: "DRN-2", CompensationAmount: ptr(400)},
		{Reference: "DRN-3", CompensationAmount: ptr(200)},
		{Reference: "DRN-4", CompensationAmount: ptr(300)},
	}
	stats := BuildStatistics(decisions, 0, 0)
	assert.Equal(t, 250.0, stats.MedianCompensation)
	assert.Equal(t, 250.0, stats.AverageCompensation)
}

func TestTopLabelsCapsAndOrders(t *testing.T) {
	freq := make(map[string]int)
	for i := 0; i < 30; i++ {
		freq[fmt.Sprintf("label-%02d", i)] = i
	}
	freq["tied-a"] = 100
	freq["tied-b"] = 100

	out := topLabels(freq, 20)
	require.Len(t, out, 20)
	assert.Equal(t, "tied-a", out[0].Label)
	assert.Equal(t, "tied-b", out[1].Label)
	for i := 1; i < len(out); i++ {
		if out[i-1].Count == out[i].Count {
			assert.Less(t, out[i-1].Label, out[i].Label)
		} else {
			assert.Greater(t, out[i-1].Count, out[i].Count)
		}
	}
}
