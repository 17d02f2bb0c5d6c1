// Package tui renders progress and summaries for the vrsindex CLI.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
)

// RunSummary is what a finished run reports.
type RunSummary struct {
	Input          string
	Output         string
	RunID          string
	Resumed        bool
	RecordsRead    int64
	RecordsSkipped int64
	AllelesWritten int64
	FirstCounter   uint64
	NextCounter    uint64
	BytesWritten   int64
	Duration       time.Duration
}

// RenderRunSummary returns the styled summary of one run.
func RenderRunSummary(s RunSummary) string {
	var b strings.Builder

	b.WriteString("\n")
	if s.RecordsSkipped > 0 {
		b.WriteString(accentStyle.Render("  ✓ RUN COMPLETE WITH SKIPS"))
	} else {
		b.WriteString(successStyle.Render("  ✓ RUN COMPLETE"))
	}
	b.WriteString("\n\n")

	row(&b, "Input:", codeStyle.Render(s.Input))
	row(&b, "Output:", codeStyle.Render(s.Output))
	if s.RunID != "" {
		row(&b, "Run:", mutedStyle.Render(s.RunID))
	}
	if s.Resumed {
		row(&b, "Resumed:", titleStyle.Render("yes"))
	}
	row(&b, "Records:", fmt.Sprintf("%s %s",
		titleStyle.Render(formatNumber(s.RecordsRead)),
		mutedStyle.Render(fmt.Sprintf("(%s skipped)", formatNumber(s.RecordsSkipped)))))
	row(&b, "Alleles:", titleStyle.Render(formatNumber(s.AllelesWritten)))
	if s.AllelesWritten > 0 {
		row(&b, "Counters:", titleStyle.Render(fmt.Sprintf("%d..%d", s.FirstCounter, s.NextCounter-1)))
	}
	row(&b, "Written:", titleStyle.Render(formatBytes(s.BytesWritten)))

	if s.Duration > 0 {
		perSec := float64(s.RecordsRead) / s.Duration.Seconds()
		row(&b, "Time:", fmt.Sprintf("%s %s",
			titleStyle.Render(formatDuration(s.Duration)),
			mutedStyle.Render(fmt.Sprintf("(%s records/sec)", formatNumber(int64(perSec))))))
	}
	b.WriteString("\n")
	return b.String()
}

// ScanSummary describes an output file for the inspect command.
type ScanSummary struct {
	Path         string
	Groups       int64
	FirstCounter uint64
	NextCounter  uint64
	ValidBytes   int64
	TotalBytes   int64
	Torn         bool
}

// RenderScanSummary returns the styled inspect report.
func RenderScanSummary(s ScanSummary) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  " + s.Path))
	b.WriteString("\n\n")

	row(&b, "Groups:", titleStyle.Render(formatNumber(s.Groups)))
	if s.Groups > 0 {
		row(&b, "Counters:", titleStyle.Render(fmt.Sprintf("%d..%d", s.FirstCounter, s.NextCounter-1)))
	}
	row(&b, "Next:", titleStyle.Render(fmt.Sprintf("%d", s.NextCounter)))
	row(&b, "Size:", titleStyle.Render(formatBytes(s.TotalBytes)))
	if s.Torn {
		row(&b, "Tail:", accentStyle.Render(fmt.Sprintf("torn, %s past the last complete group",
			formatBytes(s.TotalBytes-s.ValidBytes))))
	} else {
		row(&b, "Tail:", successStyle.Render("clean"))
	}
	b.WriteString("\n")
	return b.String()
}

// Warn renders a one-line warning.
func Warn(msg string) string {
	return accentStyle.Render("  ✗ " + msg)
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", mutedStyle.Render(fmt.Sprintf("%-9s", label)), value)
}

// NewProgress creates a byte progress bar over the input. total < 0 means
// the size is unknown (stdin) and the bar becomes a spinner.
func NewProgress(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
