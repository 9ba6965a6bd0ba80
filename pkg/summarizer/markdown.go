package summarizer

import (
	"fmt"
	"strings"

	"github.com/user/framecache/pkg/mediatime"
)

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used to translate headings and labels.
func WithTranslator(fn func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = fn
	}
}

// WithVersion adds the tool version to the report footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// NewMarkdownFormatter creates a Markdown formatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{translate: func(s string) string { return s }}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Render Summary"))

	fmt.Fprintf(&b, "## %s\n\n", t("Job"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	row(&b, t("Kind"), s.Job.Kind)
	for i, src := range s.Job.Sources {
		label := t("Source")
		if len(s.Job.Sources) > 1 {
			label = fmt.Sprintf("%s %d", label, i+1)
		}
		row(&b, label, src)
	}
	if s.Job.Codec != "" {
		row(&b, t("Codec"), s.Job.Codec)
	}
	if s.Job.Elapsed > 0 {
		row(&b, t("Elapsed"), s.Job.Elapsed.Round(1e6).String())
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Frames"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	row(&b, t("Requested"), fmt.Sprintf("%d", s.Frames.Count))
	row(&b, t("Range"), fmt.Sprintf("%s - %s", seconds(s.Frames.Start), seconds(s.Frames.End)))
	if s.Frames.FPS > 0 {
		row(&b, t("Rate"), fmt.Sprintf("%.2f fps", s.Frames.FPS))
	}
	if s.Frames.Retries > 0 {
		row(&b, t("Retries"), fmt.Sprintf("%d", s.Frames.Retries))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Cache"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	row(&b, t("Hits"), fmt.Sprintf("%d", s.Cache.Hits))
	row(&b, t("Misses"), fmt.Sprintf("%d", s.Cache.Misses))
	row(&b, t("Hit Rate"), fmt.Sprintf("%.1f%%", s.HitRate()*100))
	row(&b, t("Extractions"), fmt.Sprintf("%d", s.Cache.Extractions))
	if s.Cache.Failures > 0 {
		row(&b, t("Failed Extractions"), fmt.Sprintf("%d", s.Cache.Failures))
	}
	row(&b, t("Runs Evicted"), fmt.Sprintf("%d", s.Cache.RunsEvicted))
	row(&b, t("Frames Evicted"), fmt.Sprintf("%d", s.Cache.FramesEvicted))
	b.WriteString("\n")

	if s.Output.Path != "" {
		fmt.Fprintf(&b, "## %s\n\n", t("Output"))
		fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
		row(&b, t("Path"), s.Output.Path)
		if s.Output.Files > 0 {
			row(&b, t("Files"), fmt.Sprintf("%d", s.Output.Files))
		}
		if s.Output.Bytes > 0 {
			row(&b, t("Size"), formatBytes(s.Output.Bytes))
		}
		if s.Output.Width > 0 {
			row(&b, t("Dimensions"), fmt.Sprintf("%dx%d", s.Output.Width, s.Output.Height))
		}
		if s.Output.Duration > 0 {
			row(&b, t("Duration"), seconds(s.Output.Duration))
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	footer := fmt.Sprintf("%s %s", t("Generated at"), s.GeneratedAt.Format("2006-01-02 15:04:05"))
	if f.version != "" {
		footer += " · framecache " + f.version
	}
	b.WriteString(footer + "\n")

	return b.String()
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", label, value)
}

func seconds(ts mediatime.Time) string {
	return fmt.Sprintf("%.3f s", ts.Seconds())
}

// formatBytes formats a byte count with binary units.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 2; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMG"[exp])
}

// Ensure MarkdownFormatter implements Formatter
var _ Formatter = (*MarkdownFormatter)(nil)
