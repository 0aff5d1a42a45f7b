// Package extractor mines decision text into a structured, classified
// record using the pattern library. Extraction is a pure function of
// its input: identical text always yields an identical record.
package extractor

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fairclaim/fos-cli/internal/model"
	"github.com/fairclaim/fos-cli/internal/patterns"
)

const (
	// minTextLength is the shortest body that can be classified
	// meaningfully; anything shorter is dropped.
	minTextLength = 100

	// confidenceDivisor normalizes the category match count into a
	// confidence: 5 matches means full confidence. Downstream
	// statistics were tuned against this constant; do not retune it
	// here.
	confidenceDivisor = 5.0

	// lowConfidence is the threshold below which an "other"
	// classification falls back to the structural product hint.
	lowConfidence = 0.2

	maxArguments  = 10
	minArgumentLn = 30
	maxSummaryLen = 500
)

// Extractor classifies raw documents against a pattern library. The
// zero cost of sharing one Extractor across workers follows from the
// library being read-only.
type Extractor struct {
	lib   *patterns.Library
	clock func() time.Time
}

// New creates an Extractor over the given library. A nil library uses
// the default rule sets.
func New(lib *patterns.Library) *Extractor {
	if lib == nil {
		lib = patterns.Default()
	}
	return &Extractor{lib: lib, clock: func() time.Time { return time.Now().UTC() }}
}

// Extract classifies a raw document. It returns nil when the body is
// empty or too short to classify, and converts any panic during rule
// application into a nil result: one bad document never aborts a batch.
func (e *Extractor) Extract(raw *model.RawDocument) (decision *model.ClassifiedDecision) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("extract: recovered from panic, dropping document",
				zap.String("reference", raw.Reference),
				zap.Any("panic", r),
			)
			decision = nil
		}
	}()

	if raw == nil || utf8.RuneCountInString(strings.TrimSpace(raw.Body)) < minTextLength {
		return nil
	}
	text := raw.Body

	category, confidence := e.categorize(text)
	if confidence < lowConfidence && category == model.CategoryOther {
		// Weak signal: trust the product label scraped from markup, if
		// any, before settling on "other".
		if raw.ProductType != "" {
			category = model.Category(raw.ProductType)
		}
	}

	score := patterns.OutcomeScore(raw.Outcome)

	d := &model.ClassifiedDecision{
		SchemaVersion:      model.SchemaVersion,
		Reference:          raw.Reference,
		URL:                raw.URL,
		Date:               raw.Date,
		ComplaintCategory:  category,
		CategoryConfidence: confidence,
		ProductType:        raw.ProductType,
		Outcome:            raw.Outcome,
		OutcomeScore:       score,
		ComplaintSummary:   e.summarize(text),
		KeyArguments:       e.keyArguments(text, score >= 0.5),
		EvidenceCited:      e.evidence(text),
		LegalReferences:    e.legalReferences(text),
		FullText:           text,
		ProcessedAt:        e.clock(),
	}
	d.CompensationAmount, d.CompensationType = e.compensation(text)

	return d
}

// categorize scores every category's rule set over the lowercased text
// and returns the winner with a normalized confidence. Repeated pattern
// occurrences all count. Ties break to the first-declared category;
// zero matches everywhere means ("other", 0).
func (e *Extractor) categorize(text string) (model.Category, float64) {
	lower := strings.ToLower(text)

	best := model.CategoryOther
	bestScore := 0
	for _, rules := range e.lib.Categories {
		score := 0
		for _, p := range rules.Patterns {
			score += len(p.FindAllStringIndex(lower, -1))
		}
		if score > bestScore {
			best = rules.Category
			bestScore = score
		}
	}

	if bestScore == 0 {
		return model.CategoryOther, 0.0
	}
	confidence := float64(bestScore) / confidenceDivisor
	if confidence > 1.0 {
		confidence = 1.0
	}
	return best, confidence
}

// keyArguments captures the reasoning spans that follow argument cue
// phrases. Populated only for upheld or partially upheld outcomes; for
// everything else the list is empty by contract, not by accident.
func (e *Extractor) keyArguments(text string, upheld bool) []string {
	args := []string{}
	if !upheld {
		return args
	}

	seen := make(map[string]bool)
	for _, p := range e.lib.Arguments {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if len(m) < 2 {
				continue
			}
			cleaned := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(cleaned) <= minArgumentLn || seen[cleaned] {
				continue
			}
			seen[cleaned] = true
			args = append(args, cleaned)
			if len(args) >= maxArguments {
				return args
			}
		}
	}
	return args
}

// evidence collects distinct evidence-type labels, lower-cased.
func (e *Extractor) evidence(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	out := []string{}
	for _, p := range e.lib.Evidence {
		for _, m := range p.FindAllString(lower, -1) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// legalReferences collects distinct legal citations. Matching is
// case-insensitive but labels keep their original case: citation text
// carries semantic case ("CONC 5" is not "conc 5"). Deduplication is
// form-normalized so the same citation in two cases counts once.
func (e *Extractor) legalReferences(text string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, p := range e.lib.Legal {
		for _, m := range p.FindAllString(text, -1) {
			key := strings.ToLower(m)
			if !seen[key] {
				seen[key] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// compensation finds the award amount and classifies the redress type.
// Amount patterns run in priority order and the first parseable value
// wins. An amount that fails to parse is absent, not an error.
func (e *Extractor) compensation(text string) (*float64, model.CompensationType) {
	var amount *float64
	for _, p := range e.lib.Amounts {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		amount = &v
		break
	}

	lower := strings.ToLower(text)
	compType := model.CompensationUnknown
	switch {
	case strings.Contains(lower, "refund") && strings.Contains(lower, "interest"):
		compType = model.CompensationRefundPlusInterest
	case strings.Contains(lower, "refund"):
		compType = model.CompensationRefund
	case strings.Contains(lower, "interest"):
		compType = model.CompensationInterest
	case strings.Contains(lower, "distress"), strings.Contains(lower, "inconvenience"):
		compType = model.CompensationDistress
	}

	return amount, compType
}

// summarize builds a bounded summary: an explicit complaint/background
// section span first, then the first substantial paragraph, then the
// first 500 characters verbatim.
func (e *Extractor) summarize(text string) string {
	for _, p := range e.lib.Summaries {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		summary := strings.Join(strings.Fields(m[1]), " ")
		return truncate(summary, maxSummaryLen)
	}

	for _, para := range strings.Split(text, "\n\n") {
		if utf8.RuneCountInString(para) > minTextLength {
			return truncate(strings.TrimSpace(para), maxSummaryLen)
		}
	}

	return truncate(text, maxSummaryLen)
}

// truncate bounds s to n characters. Slicing bytes here would split a
// multi-byte character at the boundary and emit invalid UTF-8.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
