package model

import "time"

// SchemaVersion is written into every persisted decision record and the
// run-statistics object so downstream consumers can detect format changes.
const SchemaVersion = 1

// Category represents a complaint classification category.
type Category string

const (
	CategoryPCP                 Category = "pcp"
	CategorySection75           Category = "section75"
	CategoryUnaffordableLending Category = "unaffordable_lending"
	CategoryHolidayPark         Category = "holiday_park"
	CategoryOther               Category = "other"
)

// AllCategories returns the classifiable categories in declaration order.
// The order is load-bearing: categorization breaks score ties by picking
// the first-declared category.
func AllCategories() []Category {
	return []Category{
		CategoryPCP,
		CategorySection75,
		CategoryUnaffordableLending,
		CategoryHolidayPark,
	}
}

// CompensationType classifies the form of redress awarded in a decision.
type CompensationType string

const (
	CompensationRefundPlusInterest CompensationType = "refund_plus_interest"
	CompensationRefund             CompensationType = "refund"
	CompensationInterest           CompensationType = "interest"
	CompensationDistress           CompensationType = "distress_and_inconvenience"
	CompensationUnknown            CompensationType = "unknown"
)

// RawDocument is a decision page as fetched, before classification. The
// structural fields are best-effort hints scraped from markup and may be
// empty when the page layout has drifted.
type RawDocument struct {
	Reference       string    `json:"reference"`
	URL             string    `json:"url"`
	RetrievedAt     time.Time `json:"retrieved_at"`
	Body            string    `json:"body"`
	Date            string    `json:"date,omitempty"`
	ProductCategory string    `json:"product_category,omitempty"`
	ProductType     string    `json:"product_type,omitempty"`
	Outcome         string    `json:"outcome,omitempty"`
}

// ClassifiedDecision is the canonical structured record produced by the
// extractor. Field names are the contract with the downstream embedding
// and indexing stage.
type ClassifiedDecision struct {
	SchemaVersion int    `json:"schema_version"`
	Reference     string `json:"reference"`
	URL           string `json:"url"`
	Date          string `json:"date"`

	ComplaintCategory  Category `json:"complaint_category"`
	CategoryConfidence float64  `json:"category_confidence"`
	ProductType        string   `json:"product_type,omitempty"`

	Outcome      string  `json:"outcome"`
	OutcomeScore float64 `json:"outcome_score"`

	ComplaintSummary string   `json:"complaint_summary"`
	KeyArguments     []string `json:"key_arguments"`
	EvidenceCited    []string `json:"evidence_cited"`
	LegalReferences  []string `json:"legal_references"`

	CompensationAmount *float64         `json:"compensation_amount,omitempty"`
	CompensationType   CompensationType `json:"compensation_type"`

	FullText    string    `json:"full_text"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Upheld reports whether the decision went fully or partially in the
// complainant's favour.
func (d *ClassifiedDecision) Upheld() bool {
	return d.OutcomeScore >= 0.5
}

// CategoryRate holds upheld counts for a single category.
type CategoryRate struct {
	Upheld int     `json:"upheld"`
	Total  int     `json:"total"`
	Rate   float64 `json:"rate"`
}

// RunStatistics aggregates a full batch of classified decisions. It is
// derived once from the decision set at the end of a run and never
// mutated incrementally.
type RunStatistics struct {
	SchemaVersion  int       `json:"schema_version"`
	TotalProcessed int       `json:"total_processed"`
	Skipped        int       `json:"skipped"`
	FetchFailures  int       `json:"fetch_failures"`
	ProcessedAt    time.Time `json:"processed_at"`

	ByCategory          map[Category]int          `json:"by_category"`
	ByOutcome           map[string]int            `json:"by_outcome"`
	UpheldRateByCategory map[Category]CategoryRate `json:"upheld_rate_by_category"`

	CommonEvidenceTypes   []LabelCount `json:"common_evidence_types"`
	CommonLegalReferences []LabelCount `json:"common_legal_references"`

	AverageCompensation float64 `json:"average_compensation"`
	MedianCompensation  float64 `json:"median_compensation"`
}

// LabelCount is a frequency-table entry, ordered by count then label for
// deterministic output.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// RunStatus tracks the lifecycle of a pipeline run in the store.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusWalking  RunStatus = "walking"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a single pipeline execution record.
type Run struct {
	ID         string         `json:"id"`
	Categories []string       `json:"categories"`
	Status     RunStatus      `json:"status"`
	Stats      *RunStatistics `json:"stats,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
