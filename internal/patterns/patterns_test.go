package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairclaim/fos-cli/internal/model"
)

func TestDefaultCompiles(t *testing.T) {
	lib := Default()
	require.NotEmpty(t, lib.Categories)
	assert.NotEmpty(t, lib.Arguments)
	assert.NotEmpty(t, lib.Evidence)
	assert.NotEmpty(t, lib.Legal)
	assert.NotEmpty(t, lib.Amounts)
	assert.NotEmpty(t, lib.Summaries)

	// Classification category order decides tie-breaks, so it must
	// track the model's declaration order exactly.
	var got []model.Category
	for _, rules := range lib.Categories {
		got = append(got, rules.Category)
	}
	assert.Equal(t, model.AllCategories(), got)
}

func TestOutcomeScore(t *testing.T) {
	tests := []struct {
		name    string
		outcome string
		want    float64
	}{
		{"not upheld", "Complaint not upheld", 0.0},
		{"not upheld beats upheld substring", "This complaint is not upheld", 0.0},
		{"partially upheld", "Partially upheld", 0.5},
		{"upheld in part", "Upheld in part", 0.5},
		{"upheld", "Complaint upheld", 1.0},
		{"unknown", "unknown", 0.0},
		{"empty", "", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutcomeScore(tt.outcome))
		})
	}
}

func TestDetectOutcome(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "explicit not upheld",
			text: "Having considered everything, I do not uphold this complaint.",
			want: "not upheld",
		},
		{
			name: "negation wins over positive phrase",
			text: "My final decision is that this complaint is not upheld.",
			want: "not upheld",
		},
		{
			name: "partially upheld",
			text: "For the reasons above the complaint is partially upheld.",
			want: "partially upheld",
		},
		{
			name: "upheld",
			text: "My final decision is that the complaint is upheld.",
			want: "upheld",
		},
		{
			name: "uphold phrasing",
			text: "I uphold this complaint and direct the business to pay redress.",
			want: "upheld",
		},
		{
			name: "no outcome phrase",
			text: "The parties exchanged correspondence about the account.",
			want: "unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectOutcome(tt.text))
		})
	}
}
