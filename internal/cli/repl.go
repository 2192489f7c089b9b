package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"knowbase/config"
	"knowbase/internal/domain"
	"knowbase/internal/emoji"
	"knowbase/internal/usecase"
)

// REPL reads one command per line and processes it to completion before
// the next read. Command failures are reported and never terminate the
// session; only exit/quit or EOF do.
type REPL struct {
	set      *usecase.CollectionSet
	searcher *usecase.Searcher
	transfer *usecase.Transfer
	cfg      *config.Config
	log      *slog.Logger
	scanner  *bufio.Scanner
	out      io.Writer
}

// NewREPL creates the interactive shell over the core components.
func NewREPL(
	set *usecase.CollectionSet,
	searcher *usecase.Searcher,
	transfer *usecase.Transfer,
	cfg *config.Config,
	log *slog.Logger,
	in io.Reader,
	out io.Writer,
) *REPL {
	return &REPL{
		set:      set,
		searcher: searcher,
		transfer: transfer,
		cfg:      cfg,
		log:      log,
		scanner:  bufio.NewScanner(in),
		out:      out,
	}
}

// Run starts the session: startup housekeeping, then the read loop.
func (r *REPL) Run() error {
	if err := r.startup(); err != nil {
		return err
	}

	r.printf("%s %s\n", emoji.Get("repeat"), green("Type natural language facts to store.\n"+
		"Type '?' to list existing facts. Use '?query' to search, '??query' for details, '?!query' for names only.\n"+
		"Type '-N' to delete fact N (e.g., -2), '-all' to delete everything.\n"+
		"Type 'r <file>' to import and 'w <file>' to export JSON records.\n"+
		"Type 'exit' or 'quit' to stop.\n"))

	for {
		r.printf("%s %s", emoji.Get("brain"), magenta("Enter fact or command: "))
		if !r.scanner.Scan() {
			r.printf("\n%s %s\n", emoji.Get("wave"), green("EOF detected. Exiting."))
			return r.scanner.Err()
		}

		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		if low := strings.ToLower(line); low == "exit" || low == "quit" {
			r.printf("%s %s\n", emoji.Get("wave"), green("Exiting..."))
			return nil
		}

		r.handle(line)
	}
}

func (r *REPL) startup() error {
	if r.cfg.ClearOnStart {
		r.printf("%s Starting with fresh collections (use --dont-clear to persist data)...\n", emoji.Get("rocket"))
		count, err := r.set.Count()
		if err != nil {
			return err
		}
		if err := r.set.ClearAll(); err != nil {
			return err
		}
		if count > 0 {
			r.printf("%s Cleared %d entries from all variants of '%s'\n",
				emoji.Get("trash"), count, r.cfg.CollectionSet)
		} else {
			r.printf("%s Collections are already empty\n", emoji.Get("memo"))
		}
	} else {
		r.printf("%s Starting with persistent collections (--dont-clear enabled)...\n", emoji.Get("rocket"))
		count, err := r.set.Count()
		if err != nil {
			return err
		}
		if count > 0 {
			r.printf("%s Found %d existing entries\n", emoji.Get("books"), count)
		} else {
			r.printf("%s Collections are empty\n", emoji.Get("memo"))
		}
	}

	if r.cfg.LoadFile != "" {
		r.runImport(r.cfg.LoadFile)
	}
	return nil
}

// handle dispatches one command line. Errors are rendered, not returned:
// nothing a command does may crash the loop.
func (r *REPL) handle(line string) {
	switch {
	case strings.HasPrefix(line, "?"):
		r.handleQuery(line)
	case strings.HasPrefix(line, "-"):
		r.handleDelete(strings.TrimSpace(line[1:]))
	case len(line) > 2 && strings.EqualFold(line[:2], "r "):
		r.runImport(line[2:])
	case len(line) > 2 && strings.EqualFold(line[:2], "w "):
		r.runExport(line[2:])
	default:
		r.storeFact(line)
	}
}

func (r *REPL) handleQuery(line string) {
	opts := usecase.Options{
		TopK:     r.cfg.Search.TopK,
		Mode:     usecase.ModeBrief,
		MergeAll: r.cfg.Search.MergeAll,
	}

	var query string
	switch {
	case strings.HasPrefix(line, "??"):
		opts.Mode = usecase.ModeDetailed
		opts.TopK = r.cfg.Search.DetailedTopK
		query = strings.TrimSpace(line[2:])
	case strings.HasPrefix(line, "?!"):
		opts.Mode = usecase.ModeNames
		opts.TopK = r.cfg.Search.DetailedTopK
		query = strings.TrimSpace(line[2:])
	default:
		query = strings.TrimSpace(line[1:])
	}

	if query == "" {
		r.listAll()
		return
	}

	results, err := r.searcher.Search(query, opts)
	if err != nil {
		r.printf("%s %s\n", emoji.Get("error"), red(fmt.Sprintf("Error querying collection: %v", err)))
		return
	}
	r.renderResults(query, results, opts.Mode)
}

func (r *REPL) listAll() {
	records, err := r.set.ListAll()
	if err != nil {
		r.printf("%s %s\n", emoji.Get("error"), red(fmt.Sprintf("Error listing entries: %v", err)))
		return
	}
	r.renderList(records)
}

func (r *REPL) handleDelete(arg string) {
	if strings.EqualFold(arg, "all") {
		r.printf("%s Are you sure you want to delete ALL entries from '%s' across all models? (yes/no): ",
			emoji.Get("warning"), r.cfg.CollectionSet)
		if !r.scanner.Scan() || strings.ToLower(strings.TrimSpace(r.scanner.Text())) != "yes" {
			r.printf("%s %s\n", emoji.Get("error"), yellow("Deletion cancelled."))
			return
		}
		if err := r.set.ClearAll(); err != nil {
			r.printf("%s %s\n", emoji.Get("error"), red(fmt.Sprintf("Error clearing collections: %v", err)))
			return
		}
		r.printf("%s %s\n", emoji.Get("trash"),
			green(fmt.Sprintf("Cleared all entries from all variants of '%s'.", r.cfg.CollectionSet)))
		return
	}

	n, err := strconv.Atoi(arg)
	if err != nil {
		r.printf("%s %s\n", emoji.Get("warning"), yellow(fmt.Sprintf("'-%s' is not a position. Use '-N' or '-all'.", arg)))
		return
	}

	deleted, err := r.set.DeleteByPosition(n)
	if err != nil {
		r.printf("%s %s\n", emoji.Get("warning"), yellow(fmt.Sprintf("No fact found at position %d. Use '?' to refresh. (%v)", n, err)))
		return
	}
	r.printf("%s %s\n", emoji.Get("trash"),
		green(fmt.Sprintf("Deleted fact #%d (%s) from all model variants", n, deleted.ID)))
}

func (r *REPL) runImport(path string) {
	report, _, err := r.transfer.ImportFile(path, r.importProgress())
	if err != nil {
		r.printf("%s %s\n", emoji.Get("error"), red(fmt.Sprintf("Error reading or processing file '%s': %v", usecase.NormalizePath(path), err)))
		return
	}

	for _, f := range report.Failed() {
		r.printf("%s %s\n", emoji.Get("warning"), yellow(fmt.Sprintf("Skipped record %d: %v", f.Index+1, f.Err)))
	}
	r.printf("%s %s\n", emoji.Get("success"),
		green(fmt.Sprintf("Imported %d records to all %d collections for '%s'.",
			report.Succeeded(), len(r.set.Handles()), r.cfg.CollectionSet)))
}

func (r *REPL) runExport(path string) {
	n, normalized, err := r.transfer.ExportFile(path)
	if err != nil {
		r.printf("%s %s\n", emoji.Get("error"), red(fmt.Sprintf("Error writing to file '%s': %v", usecase.NormalizePath(path), err)))
		return
	}
	r.printf("%s %s\n", emoji.Get("export"),
		green(fmt.Sprintf("Exported collection to '%s' (%d records).", normalized, n)))
}

func (r *REPL) storeFact(text string) {
	rec := domain.Record{
		Text: text,
		Metadata: map[string]any{
			"source":    r.cfg.Source,
			"timestamp": time.Now().Format("2006-01-02 15:04:05"),
		},
	}

	stored, err := r.set.Upsert(rec)
	if err != nil {
		r.printf("%s %s\n", emoji.Get("error"), red(fmt.Sprintf("Error storing fact: %v", err)))
		return
	}
	r.log.Debug("fact stored", "id", stored.ID)
	r.printf("%s %s %s\n", emoji.Get("success"), green("Stored fact:"), text)
}

func (r *REPL) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}
