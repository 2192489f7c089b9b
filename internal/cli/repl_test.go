package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"knowbase/config"
	"knowbase/internal/emoji"
	applog "knowbase/internal/log"
	"knowbase/internal/usecase"
)

func testREPL(t *testing.T, cfg *config.Config, input string) (*usecase.CollectionSet, string) {
	t.Helper()
	emoji.SetDisabled(true)
	logger := applog.NewWithWriter(io.Discard, "error", "text")

	set, closeStore, err := buildCollectionSet(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(closeStore)

	searcher := usecase.NewSearcher(set, cfg.SchemaPatterns(), logger)
	transfer := usecase.NewTransfer(set, logger)

	var out bytes.Buffer
	repl := NewREPL(set, searcher, transfer, cfg, logger, strings.NewReader(input), &out)
	if err := repl.Run(); err != nil {
		t.Fatalf("REPL exited with error: %v\noutput:\n%s", err, out.String())
	}
	return set, out.String()
}

func memoryConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Store.Memory = true
	cfg.ClearOnStart = false
	cfg.Schemas = []string{"all"}
	return cfg
}

func TestREPLStoreListSearchDelete(t *testing.T) {
	input := strings.Join([]string{
		"the quarterly report is due friday",
		"?",
		"?quarterly report",
		"??quarterly report",
		"-1",
		"?",
		"exit",
	}, "\n") + "\n"

	set, out := testREPL(t, memoryConfig(), input)

	if !strings.Contains(out, "Stored fact:") {
		t.Errorf("expected fact stored, output:\n%s", out)
	}
	if !strings.Contains(out, "[1]") || !strings.Contains(out, "quarterly report") {
		t.Errorf("expected listed entry, output:\n%s", out)
	}
	if !strings.Contains(out, "Top Matches for 'quarterly report'") {
		t.Errorf("expected search results, output:\n%s", out)
	}
	if !strings.Contains(out, "source:") {
		t.Errorf("expected detailed metadata, output:\n%s", out)
	}
	if !strings.Contains(out, "Deleted fact #1") {
		t.Errorf("expected positional delete, output:\n%s", out)
	}
	if !strings.Contains(out, "No facts stored yet.") {
		t.Errorf("expected empty list after delete, output:\n%s", out)
	}
	if !strings.Contains(out, "Exiting...") {
		t.Errorf("expected clean exit, output:\n%s", out)
	}

	count, _ := set.Count()
	if count != 0 {
		t.Errorf("expected empty set after delete, got %d", count)
	}
}

func TestREPLClearAllRequiresConfirmation(t *testing.T) {
	input := strings.Join([]string{
		"fact one",
		"fact two",
		"-all",
		"no",
		"-all",
		"yes",
		"exit",
	}, "\n") + "\n"

	set, out := testREPL(t, memoryConfig(), input)

	if !strings.Contains(out, "Deletion cancelled.") {
		t.Errorf("expected cancelled deletion, output:\n%s", out)
	}
	if !strings.Contains(out, "Cleared all entries") {
		t.Errorf("expected confirmed clear, output:\n%s", out)
	}
	count, _ := set.Count()
	if count != 0 {
		t.Errorf("expected cleared set, got %d entries", count)
	}
}

func TestREPLSearchNoResults(t *testing.T) {
	input := "?zzz_nonexistent_token\nexit\n"
	_, out := testREPL(t, memoryConfig(), input)

	if !strings.Contains(out, "No matching results found.") {
		t.Errorf("expected no-results message, output:\n%s", out)
	}
}

func TestREPLInvalidCommands(t *testing.T) {
	input := strings.Join([]string{
		"-notanumber",
		"-99",
		"exit",
	}, "\n") + "\n"

	_, out := testREPL(t, memoryConfig(), input)

	if !strings.Contains(out, "is not a position") {
		t.Errorf("expected invalid position message, output:\n%s", out)
	}
	if !strings.Contains(out, "No fact found at position 99") {
		t.Errorf("expected out-of-range message, output:\n%s", out)
	}
}

func TestREPLImportExport(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "records.json")
	outPath := filepath.Join(dir, "dump")

	content := `[
		{"id": "a", "text": "alpha bravo", "metadata": {"schema": "data_mart", "table": "accounts"}},
		{"id": "broken"},
		{"id": "b", "text": "charlie delta"}
	]`
	if err := os.WriteFile(inPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	input := strings.Join([]string{
		"r " + inPath,
		"?!alpha",
		"w " + outPath,
		"exit",
	}, "\n") + "\n"

	set, out := testREPL(t, memoryConfig(), input)

	if !strings.Contains(out, "Imported 2 records") {
		t.Errorf("expected 2 imported records, output:\n%s", out)
	}
	if !strings.Contains(out, "Skipped record 2") {
		t.Errorf("expected malformed record reported, output:\n%s", out)
	}
	if !strings.Contains(out, "data_mart.accounts") {
		t.Errorf("expected names-only label, output:\n%s", out)
	}
	if !strings.Contains(out, "Exported collection to") {
		t.Errorf("expected export confirmation, output:\n%s", out)
	}

	if _, err := os.Stat(outPath + ".json"); err != nil {
		t.Errorf("expected export file written: %v", err)
	}
	count, _ := set.Count()
	if count != 2 {
		t.Errorf("expected 2 records after import, got %d", count)
	}
}

func TestREPLClearOnStart(t *testing.T) {
	cfg := memoryConfig()
	cfg.ClearOnStart = true

	_, out := testREPL(t, cfg, "exit\n")
	if !strings.Contains(out, "fresh collections") {
		t.Errorf("expected fresh-start banner, output:\n%s", out)
	}
}
