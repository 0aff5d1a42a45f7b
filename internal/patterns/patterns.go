// Package patterns holds the immutable rule sets used to mine decision
// text: category keywords, argument cues, evidence cues, legal citation
// forms, compensation amount forms, and outcome phrases.
package patterns

import (
	"regexp"
	"strings"

	"github.com/fairclaim/fos-cli/internal/model"
)

// CategoryRules pairs a category with its keyword patterns. Every match
// of every pattern counts toward the category's score; repeated
// occurrences count, so documents with stronger topical signal score
// higher.
type CategoryRules struct {
	Category model.Category
	Patterns []*regexp.Regexp
}

// Library is the compiled, read-only pattern library. A single Library
// is safe for concurrent use by any number of extraction workers.
type Library struct {
	Categories []CategoryRules
	Arguments  []*regexp.Regexp
	Evidence   []*regexp.Regexp
	Legal      []*regexp.Regexp
	Amounts    []*regexp.Regexp
	Summaries  []*regexp.Regexp
}

func compileAll(exprs []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// Default returns the canonical pattern library. Category patterns are
// matched against lower-cased text, so they are written lower-case;
// argument, legal, and amount patterns carry (?i) and run over the
// original text because legal citation labels are returned verbatim.
func Default() *Library {
	return &Library{
		Categories: []CategoryRules{
			{
				Category: model.CategoryPCP,
				Patterns: compileAll([]string{
					`motor finance`,
					`car finance`,
					`pcp`,
					`personal contract purchase`,
					`hire purchase.*motor`,
					`commission.*car`,
					`discretionary commission`,
					`dca`,
					`dealer commission`,
				}),
			},
			{
				Category: model.CategorySection75,
				Patterns: compileAll([]string{
					`section 75`,
					`s\.?75`,
					`consumer credit act.*1974`,
					`joint.*liability`,
					`jointly.*liable`,
					`credit card.*purchase`,
					`goods not.*delivered`,
					`faulty goods`,
					`misrepresentation.*credit`,
				}),
			},
			{
				Category: model.CategoryUnaffordableLending,
				Patterns: compileAll([]string{
					`unaffordable`,
					`irresponsible lending`,
					`affordability check`,
					`creditworth`,
					`could not afford`,
					`persistent debt`,
					`financial difficult`,
					`debt spiral`,
					`conc 5`,
					`lending assessment`,
				}),
			},
			{
				Category: model.CategoryHolidayPark,
				Patterns: compileAll([]string{
					`holiday park`,
					`caravan`,
					`static home`,
					`lodge`,
					`timeshare`,
					`pitch fee`,
					`site fee`,
				}),
			},
		},
		Arguments: compileAll([]string{
			`(?i)I (?:think|believe|consider|find) (?:that )?(.{50,200})`,
			`(?i)(?:The|This) (?:business|lender|firm) (?:should have|failed to|did not) (.{30,150})`,
			`(?i)(?:It is|I am) (?:clear|satisfied|persuaded) (?:that )?(.{30,150})`,
			`(?i)(?:Taking|Having) (?:all|everything) into (?:account|consideration),? (.{30,150})`,
			`(?i)(?:On balance|Overall),? (.{30,150})`,
		}),
		Evidence: compileAll([]string{
			`(?:bank statement|credit report|application form|agreement|contract)`,
			`(?:income|expenditure|affordability) (?:information|assessment|data)`,
			`(?:credit file|credit history|credit score)`,
			`(?:terms and conditions|t&cs)`,
			`(?:correspondence|emails|letters)`,
			`(?:transaction history|statements)`,
		}),
		Legal: compileAll([]string{
			`(?i)CONC \d+(?:\.\d+)*`,
			`(?i)Consumer Credit Act \d{4}`,
			`(?i)section \d+`,
			`(?i)FCA (?:rules|guidance|handbook)`,
			`(?i)Consumer Rights Act`,
			`(?i)DISP \d+(?:\.\d+)*`,
			`(?i)BCOBS`,
		}),
		Amounts: compileAll([]string{
			`(?i)pay.*?£([\d,]+(?:\.\d{2})?)`,
			`(?i)refund.*?£([\d,]+(?:\.\d{2})?)`,
			`(?i)£([\d,]+(?:\.\d{2})?).*?compensation`,
			`(?i)award.*?£([\d,]+(?:\.\d{2})?)`,
		}),
		Summaries: compileAll([]string{
			`(?is)complaint\s*:?\s*(.{100,500}?)(?:\n|$)`,
			`(?is)what happened\s*:?\s*(.{100,500}?)(?:\n|$)`,
			`(?is)background\s*:?\s*(.{100,500}?)(?:\n|$)`,
		}),
	}
}

// OutcomeScore maps an outcome label to its numeric score. The check
// order is fixed: "not upheld" takes precedence over "upheld" even
// though the latter is a substring, then partial outcomes, then full
// upholds. Anything else scores 0.
func OutcomeScore(outcome string) float64 {
	lower := strings.ToLower(outcome)
	switch {
	case strings.Contains(lower, "not upheld"):
		return 0.0
	case strings.Contains(lower, "partially"), strings.Contains(lower, "part"):
		return 0.5
	case strings.Contains(lower, "upheld"):
		return 1.0
	default:
		return 0.0
	}
}

// outcomePhrases are scanned, in order, over whole-page text to derive
// an outcome label when no explicit label field is present in markup.
// Negated forms come first so "not upheld" never reads as "upheld".
var outcomePhrases = []struct {
	phrase string
	label  string
}{
	{"complaint is not upheld", "not upheld"},
	{"do not uphold", "not upheld"},
	{"not upheld", "not upheld"},
	{"partially upheld", "partially upheld"},
	{"complaint is upheld", "upheld"},
	{"uphold this complaint", "upheld"},
	{"upheld", "upheld"},
}

// DetectOutcome scans page text for outcome phrases and returns the
// first label whose phrase is present, or "unknown".
func DetectOutcome(text string) string {
	lower := strings.ToLower(text)
	for _, p := range outcomePhrases {
		if strings.Contains(lower, p.phrase) {
			return p.label
		}
	}
	return "unknown"
}
