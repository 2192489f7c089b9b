package usecase

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"knowbase/internal/domain"
)

// Transfer is the import/export gateway: it bulk-loads a JSON record file
// into the collection set and dumps the set back to the same shape.
type Transfer struct {
	set *CollectionSet
	log *slog.Logger
}

// NewTransfer creates an import/export gateway over the collection set.
func NewTransfer(set *CollectionSet, log *slog.Logger) *Transfer {
	if log == nil {
		log = slog.Default()
	}
	return &Transfer{set: set, log: log}
}

// NormalizePath appends the .json extension when missing.
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path != "" && !strings.HasSuffix(path, ".json") {
		path += ".json"
	}
	return path
}

// Import feeds externally supplied records through the batch upsert.
// Malformed entries are reported in the batch result, not fatal.
func (t *Transfer) Import(recs []domain.Record, progress func(done, total int)) domain.BatchReport {
	return t.set.UpsertBatch(recs, progress)
}

// ImportFile reads a JSON array of {id?, text, metadata?} records and
// imports it. Returns the per-record report and the normalized path.
func (t *Transfer) ImportFile(path string, progress func(done, total int)) (domain.BatchReport, string, error) {
	path = NormalizePath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.BatchReport{}, path, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var recs []domain.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return domain.BatchReport{}, path, fmt.Errorf("%w: %s is not a JSON array of records: %v",
			domain.ErrValidation, path, err)
	}
	if len(recs) == 0 {
		return domain.BatchReport{}, path, fmt.Errorf("%w: %s is empty", domain.ErrValidation, path)
	}

	report := t.Import(recs, progress)
	t.log.Info("import finished", "path", path,
		"succeeded", report.Succeeded(), "failed", len(report.Failed()))
	return report, path, nil
}

// Export returns the full record set in import shape. Read-only: vectors
// are derivable, never exported.
func (t *Transfer) Export() ([]domain.Record, error) {
	return t.set.ListAll()
}

// ExportFile dumps the record set to a JSON file suitable for round-trip
// import. Parent directories are created as needed. Returns the number of
// records written and the normalized path.
func (t *Transfer) ExportFile(path string) (int, string, error) {
	path = NormalizePath(path)

	records, err := t.Export()
	if err != nil {
		return 0, path, err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return 0, path, err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, path, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, path, fmt.Errorf("failed to write %s: %w", path, err)
	}

	t.log.Info("export finished", "path", path, "records", len(records))
	return len(records), path, nil
}
