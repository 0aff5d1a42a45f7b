// Package output writes the pipeline's JSON artifacts: per-category
// decision files, the upheld-only training slice, and run statistics.
// Files are always rewritten whole, never patched in place, so an
// interrupted run leaves consistent (if incomplete) output.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fairclaim/fos-cli/internal/model"
)

// Writer persists decision records as human-diffable UTF-8 JSON under a
// single output directory.
type Writer struct {
	dir string
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "output: create dir %s", dir)
	}
	return &Writer{dir: dir}, nil
}

// WriteCategories groups decisions by resolved complaint category and
// writes one JSON array per category.
func (w *Writer) WriteCategories(decisions []model.ClassifiedDecision) error {
	byCategory := make(map[model.Category][]model.ClassifiedDecision)
	for _, d := range decisions {
		byCategory[d.ComplaintCategory] = append(byCategory[d.ComplaintCategory], d)
	}

	categories := make([]model.Category, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	for _, cat := range categories {
		path := filepath.Join(w.dir, fmt.Sprintf("%s_decisions.json", cat))
		if err := w.writeJSON(path, byCategory[cat]); err != nil {
			return err
		}
		zap.L().Debug("output: wrote category file",
			zap.String("category", string(cat)),
			zap.Int("decisions", len(byCategory[cat])),
		)
	}
	return nil
}

// WriteUpheld writes the upheld/partially-upheld slice, the primary
// training-relevant subset.
func (w *Writer) WriteUpheld(decisions []model.ClassifiedDecision) error {
	upheld := make([]model.ClassifiedDecision, 0, len(decisions))
	for _, d := range decisions {
		if d.Upheld() {
			upheld = append(upheld, d)
		}
	}
	return w.writeJSON(filepath.Join(w.dir, "upheld_decisions.json"), upheld)
}

// WriteStatistics writes the run statistics object.
func (w *Writer) WriteStatistics(stats *model.RunStatistics) error {
	return w.writeJSON(filepath.Join(w.dir, "run_statistics.json"), stats)
}

// writeJSON writes v indented to a temp file and renames it into place,
// so readers never observe a partially written file.
func (w *Writer) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "output: marshal %s", path)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "output: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "output: rename %s", path)
	}
	return nil
}
