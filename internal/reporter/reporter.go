package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/duster/internal/cleaner"
	"github.com/fenilsonani/duster/internal/engine"
	"github.com/fenilsonani/duster/internal/scanner"
	"github.com/fenilsonani/duster/internal/space"
	"github.com/fenilsonani/duster/pkg/utils"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
)

// pathWidth is the column width for paths in table output
const pathWidth = 60

// ParseFormat converts a user supplied format name
func ParseFormat(name string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatTable, FormatJSON, FormatYAML, FormatSummary:
		return f, nil
	case "":
		return FormatSummary, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", name)
	}
}

// Reporter handles report generation
type Reporter struct {
	writer io.Writer
	format OutputFormat
	styles styles
}

// Option configures a Reporter
type Option func(*reporterConfig)

type reporterConfig struct {
	noColor bool
}

// WithNoColor disables styling even on a terminal
func WithNoColor(noColor bool) Option {
	return func(c *reporterConfig) { c.noColor = noColor }
}

// New creates a new Reporter
func New(writer io.Writer, format OutputFormat, opts ...Option) *Reporter {
	var cfg reporterConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Reporter{
		writer: writer,
		format: format,
		styles: newStyles(writer, cfg.noColor),
	}
}

// Report writes a scan result
func (r *Reporter) Report(result *scanner.ScanResult) error {
	switch r.format {
	case FormatTable:
		return r.reportTable(result)
	case FormatJSON:
		return r.encodeJSON(scanReport(result))
	case FormatYAML:
		return r.encodeYAML(scanReport(result))
	case FormatSummary:
		return r.reportSummary(result)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// ReportAnalysis writes the per-category breakdown of a scan
func (r *Reporter) ReportAnalysis(a *engine.Analysis) error {
	switch r.format {
	case FormatJSON:
		return r.encodeJSON(a)
	case FormatYAML:
		return r.encodeYAML(a)
	case FormatTable, FormatSummary:
		return r.analysisText(a)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// ReportOutcome writes the outcome of a clean or of its dry run
func (r *Reporter) ReportOutcome(out *cleaner.Outcome) error {
	switch r.format {
	case FormatJSON:
		return r.encodeJSON(out)
	case FormatYAML:
		return r.encodeYAML(out)
	case FormatTable, FormatSummary:
		return r.outcomeText(out)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// ReportSpace writes filesystem capacity
func (r *Reporter) ReportSpace(u *space.Usage) error {
	switch r.format {
	case FormatJSON:
		return r.encodeJSON(u)
	case FormatYAML:
		return r.encodeYAML(u)
	case FormatTable, FormatSummary:
		s := r.styles
		fmt.Fprintf(r.writer, "%s\n", s.title.Render("=== Disk Space ==="))
		fmt.Fprintf(r.writer, "Path:       %s\n", s.path.Render(u.Path))
		if u.Filesystem != "" {
			fmt.Fprintf(r.writer, "Filesystem: %s\n", u.Filesystem)
		}
		fmt.Fprintf(r.writer, "Total:      %s\n", utils.FormatBytesUnsigned(u.Total))
		fmt.Fprintf(r.writer, "Used:       %s (%.1f%%)\n", utils.FormatBytesUnsigned(u.Used), u.UsedPercent)
		fmt.Fprintf(r.writer, "Free:       %s\n", s.success.Render(utils.FormatBytesUnsigned(u.Free)))
		fmt.Fprintf(r.writer, "%s\n", s.progressBar(int64(u.Used), int64(u.Total), 40))
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

type scanJSON struct {
	ID                 string                  `json:"id" yaml:"id"`
	Timestamp          string                  `json:"timestamp" yaml:"timestamp"`
	Root               string                  `json:"root" yaml:"root"`
	TotalFiles         int                     `json:"total_files" yaml:"total_files"`
	TotalSize          int64                   `json:"total_size" yaml:"total_size"`
	TotalSizeFormatted string                  `json:"total_size_formatted" yaml:"total_size_formatted"`
	Categories         []scanner.CategoryTotal `json:"categories" yaml:"categories"`
	Items              []scanner.Item          `json:"items" yaml:"items"`
	Warnings           []scanner.Warning       `json:"warnings" yaml:"warnings"`
}

func scanReport(result *scanner.ScanResult) scanJSON {
	warnings := result.Warnings
	if warnings == nil {
		warnings = []scanner.Warning{}
	}
	return scanJSON{
		ID:                 result.ID,
		Timestamp:          result.CreatedAt.Format(time.RFC3339),
		Root:               result.Root,
		TotalFiles:         result.TotalCount,
		TotalSize:          result.TotalSize,
		TotalSizeFormatted: utils.FormatBytes(result.TotalSize),
		Categories:         result.Breakdown(),
		Items:              result.SortedBySize(),
		Warnings:           warnings,
	}
}

// reportSummary generates a summary report
func (r *Reporter) reportSummary(result *scanner.ScanResult) error {
	s := r.styles
	fmt.Fprintf(r.writer, "%s\n", s.title.Render("=== Scan Summary ==="))
	fmt.Fprintf(r.writer, "Root: %s\n", s.path.Render(result.Root))
	fmt.Fprintf(r.writer, "Total Items: %d\n", result.TotalCount)
	fmt.Fprintf(r.writer, "Total Size: %s\n", s.size.Render(utils.FormatBytes(result.TotalSize)))

	if result.TotalCount == 0 {
		fmt.Fprintf(r.writer, "\n%s\n", s.success.Render("Nothing to clean"))
	} else {
		fmt.Fprintf(r.writer, "\nBreakdown by Category:\n")
		for _, t := range result.Breakdown() {
			fmt.Fprintf(r.writer, "  %-16s %5d items  %10s\n",
				s.category.Render(t.Category.Label()), t.Count, utils.FormatBytes(t.Size))
		}
	}

	r.warningsLine(len(result.Warnings))
	return nil
}

// reportTable generates a table report, largest items first
func (r *Reporter) reportTable(result *scanner.ScanResult) error {
	s := r.styles
	rule := strings.Repeat("-", 120)

	fmt.Fprintf(r.writer, "%-60s | %-12s | %-16s | %s\n", "Path", "Size", "Category", "Modified")
	fmt.Fprintf(r.writer, "%s\n", rule)

	for _, item := range result.SortedBySize() {
		fmt.Fprintf(r.writer, "%-60s | %-12s | %-16s | %s\n",
			truncatePath(item.Path, pathWidth),
			utils.FormatBytes(item.Size),
			item.Category,
			item.ModTime.Format("2006-01-02 15:04:05"))
	}

	fmt.Fprintf(r.writer, "%s\n", rule)
	fmt.Fprintf(r.writer, "Total: %d items, %s\n", result.TotalCount, s.size.Render(utils.FormatBytes(result.TotalSize)))
	r.warningsLine(len(result.Warnings))
	return nil
}

func (r *Reporter) analysisText(a *engine.Analysis) error {
	s := r.styles
	fmt.Fprintf(r.writer, "%s\n", s.title.Render("=== Analysis ==="))
	fmt.Fprintf(r.writer, "Root: %s\n", s.path.Render(a.Root))
	fmt.Fprintf(r.writer, "Reclaimable: %s in %d items\n\n", s.size.Render(utils.FormatBytes(a.TotalSize)), a.TotalCount)

	for _, t := range a.Breakdown {
		percent := 0.0
		if a.TotalSize > 0 {
			percent = float64(t.Size) / float64(a.TotalSize) * 100
		}
		fmt.Fprintf(r.writer, "  %-16s %10s %5.1f%% %s\n",
			s.category.Render(t.Category.Label()),
			utils.FormatBytes(t.Size),
			percent,
			s.progressBar(t.Size, a.TotalSize, 20))
	}

	if len(a.Largest) > 0 {
		fmt.Fprintf(r.writer, "\nLargest items:\n")
		for _, item := range a.Largest {
			fmt.Fprintf(r.writer, "  %10s  %s  %s\n",
				utils.FormatBytes(item.Size),
				truncatePath(item.Path, pathWidth),
				s.dim.Render(item.Reason))
		}
	}

	r.warningsLine(a.Warnings)
	return nil
}

func (r *Reporter) outcomeText(out *cleaner.Outcome) error {
	s := r.styles

	source := "fresh scan"
	if out.FromCache {
		source = "cached scan"
	}

	if out.DryRun {
		fmt.Fprintf(r.writer, "%s\n", s.title.Render("=== Dry Run ==="))
		fmt.Fprintf(r.writer, "Would delete %d items (%s) from %s\n",
			len(out.Pending), s.size.Render(utils.FormatBytes(out.PendingBytes)), source)
		for _, t := range out.Pending {
			fmt.Fprintf(r.writer, "  %10s  %-12s %s\n", utils.FormatBytes(t.Size), t.Category, t.Path)
		}
	} else {
		fmt.Fprintf(r.writer, "%s\n", s.title.Render("=== Cleanup Complete ==="))
		fmt.Fprintf(r.writer, "Deleted %d items, freed %s (%s)\n",
			out.DeletedCount, s.success.Render(utils.FormatBytes(out.FreedBytes)), source)
	}

	if len(out.Failures) > 0 {
		fmt.Fprint(r.writer, s.warning.Render(cleaner.FormatErrorSummary(out.Failures)))
		fmt.Fprintln(r.writer)
		for _, f := range out.Failures {
			fmt.Fprintf(r.writer, "  %s %s\n", s.err.Render(f.Reason.String()+":"), f.Path)
		}
	}
	return nil
}

func (r *Reporter) warningsLine(n int) {
	if n > 0 {
		fmt.Fprintf(r.writer, "\n%s\n", r.styles.warning.Render(fmt.Sprintf("Warnings: %d paths could not be read", n)))
	}
}

func (r *Reporter) encodeJSON(v interface{}) error {
	encoder := sonic.ConfigStd.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (r *Reporter) encodeYAML(v interface{}) error {
	encoder := yaml.NewEncoder(r.writer)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(v)
}

func truncatePath(path string, width int) string {
	if len(path) <= width {
		return path
	}
	return "..." + path[len(path)-(width-3):]
}

// SaveToFile saves the scan report to a file
func SaveToFile(result *scanner.ScanResult, path string, format OutputFormat) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return New(file, format, WithNoColor(true)).Report(result)
}
