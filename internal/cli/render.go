package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"

	"knowbase/internal/domain"
	"knowbase/internal/emoji"
	"knowbase/internal/usecase"
)

const (
	ansiReset   = "\033[0m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[93m"
	ansiCyan    = "\033[36m"
	ansiMagenta = "\033[35m"
)

// Colors follow the emoji switch: --no-emoji means plain output.
func colorize(color, s string) string {
	if emoji.IsDisabled() {
		return s
	}
	return color + s + ansiReset
}

func red(s string) string     { return colorize(ansiRed, s) }
func green(s string) string   { return colorize(ansiGreen, s) }
func yellow(s string) string  { return colorize(ansiYellow, s) }
func cyan(s string) string    { return colorize(ansiCyan, s) }
func magenta(s string) string { return colorize(ansiMagenta, s) }

// renderList prints the full record set with 1-based positions, the same
// numbering positional delete resolves against.
func (r *REPL) renderList(records []domain.Record) {
	if len(records) == 0 {
		r.printf("%s %s\n\n", emoji.Get("info"), red("No facts stored yet."))
		return
	}

	r.printf("\n%s %s %s\n\n", green("==="), emoji.Get("books"), green("Stored Entries ==="))
	for i, rec := range records {
		r.printf("%s %s %s\n", yellow(fmt.Sprintf("[%d]", i+1)), emoji.Get("memo"), rec.Text)
		if len(rec.Metadata) == 0 {
			r.printf("%s %s\n", emoji.Get("page"), red("No metadata available."))
		} else {
			for _, k := range rec.MetadataKeys() {
				r.printf("%s %s %v\n", emoji.Get("page"), cyan(k+":"), rec.Metadata[k])
			}
		}
		r.printf("\n")
	}
	r.printf("%s\n\n", green("=== End of list ==="))
}

// renderResults prints ranked search results in the requested mode. Mode
// only changes formatting; the ranked set is identical across modes.
func (r *REPL) renderResults(query string, results []domain.SearchResult, mode usecase.Mode) {
	if len(results) == 0 {
		r.printf("%s %s\n\n", emoji.Get("search"), red("No matching results found."))
		return
	}

	r.printf("\n%s %s %s\n\n", green("==="), emoji.Get("search"),
		green(fmt.Sprintf("Top Matches for '%s': ===", query)))

	if mode == usecase.ModeNames {
		for i, label := range usecase.Labels(results) {
			r.printf("%s %s %s\n", yellow(fmt.Sprintf("[%d]", i+1)), emoji.Get("page"), label)
		}
		r.printf("\n")
		return
	}

	for i, res := range results {
		r.printf("%s %s %s\n", yellow(fmt.Sprintf("[%d]", i+1)), emoji.Get("page"), res.Text)
		if mode == usecase.ModeDetailed {
			if len(res.Metadata) == 0 {
				r.printf("   %s\n", red("No metadata available."))
			} else {
				for _, k := range res.MetadataKeys() {
					v := res.Metadata[k]
					if v == nil || v == "" || v == "[]" {
						continue
					}
					r.printf("   %s %v\n", cyan(k+":"), v)
				}
			}
			r.printf("   %s %s\n", magenta("ID:"), res.ID)
			r.printf("   %s %.4f (%s)\n", magenta("distance:"), res.Distance, res.Variant)
		}
		r.printf("\n")
	}
}

// importProgress returns a batch progress callback backed by a progress
// bar that initializes itself on the first report.
func (r *REPL) importProgress() func(done, total int) {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(!emoji.IsDisabled()),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Importing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(r.out)
				}),
			)
		}
		bar.Set(done)
	}
}
