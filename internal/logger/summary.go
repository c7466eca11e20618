package logger

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/harrison/artisan/internal/artifact"
	"github.com/harrison/artisan/internal/planstore"
)

const (
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"
	boxHorizontal  = "─"
	boxVertical    = "│"
	boxTeeLeft     = "├"
	boxTeeRight    = "┤"
)

const (
	cyanColor  = "\033[36m"
	resetColor = "\033[0m"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// getTerminalWidth returns the current terminal width with sensible
// bounds, falling back to 80 columns when w is not a terminal or the size
// can't be determined.
func getTerminalWidth(w *os.File) int {
	width, _, err := term.GetSize(int(w.Fd()))
	if err != nil || width < 60 {
		return 80
	}
	if width > 120 {
		return 120
	}
	return width
}

func drawBoxTop(width int) string {
	return cyanColor + boxTopLeft + strings.Repeat(boxHorizontal, width-2) + boxTopRight + resetColor
}

func drawBoxBottom(width int) string {
	return cyanColor + boxBottomLeft + strings.Repeat(boxHorizontal, width-2) + boxBottomRight + resetColor
}

func drawBoxDivider(width int) string {
	return cyanColor + boxTeeLeft + strings.Repeat(boxHorizontal, width-2) + boxTeeRight + resetColor
}

// drawBoxLine pads content to width, accounting for wide runes, and
// truncates content that doesn't fit rather than breaking the border.
func drawBoxLine(content string, width int) string {
	visible := visibleLength(content)
	padding := width - 4 - visible
	if padding < 0 {
		padding = 0
		content = truncateToVisibleWidth(content, width-4)
	}
	return cyanColor + boxVertical + resetColor + " " + content + strings.Repeat(" ", padding) + " " + cyanColor + boxVertical + resetColor
}

// visibleLength returns the on-screen width of s, stripping ANSI escapes
// and accounting for double-width runes.
func visibleLength(s string) int {
	return runewidth.StringWidth(ansiEscape.ReplaceAllString(s, ""))
}

func truncateToVisibleWidth(s string, maxWidth int) string {
	if visibleLength(s) <= maxWidth || maxWidth <= 3 {
		return s
	}
	clean := ansiEscape.ReplaceAllString(s, "")
	return runewidth.Truncate(clean, maxWidth-3, "...")
}

// LogRunSummary renders a boxed, terminal-width-aware summary of a
// finished or paused run: goal, wave count, and per-status artifact
// tallies. Always printed regardless of level, since it's the final word
// on a run rather than a diagnostic line.
func (cl *ConsoleLogger) LogRunSummary(record *planstore.Record) {
	if cl.writer == nil || record == nil {
		return
	}

	w := getTerminalWidth(os.Stdout)
	if f, ok := cl.writer.(*os.File); ok {
		w = getTerminalWidth(f)
	}

	var out strings.Builder
	out.WriteString(drawBoxTop(w) + "\n")
	out.WriteString(drawBoxLine(fmt.Sprintf("run summary: %s", record.GoalFingerprint), w) + "\n")
	out.WriteString(drawBoxDivider(w) + "\n")
	out.WriteString(drawBoxLine(truncateGoal(record.Goal), w) + "\n")
	out.WriteString(drawBoxLine(fmt.Sprintf("waves: %d", len(record.Waves)), w) + "\n")

	completed, failed, blocked := tallyStatuses(record)
	status := "in progress"
	if record.Complete {
		status = "complete"
	}
	out.WriteString(drawBoxLine(fmt.Sprintf("status: %s  completed=%d failed=%d blocked=%d remaining=%d",
		status, completed, failed, blocked, len(record.RemainingArtifacts())), w) + "\n")
	if len(record.ModelDistribution) > 0 {
		out.WriteString(drawBoxLine(fmt.Sprintf("model calls: %s", formatDistribution(record.ModelDistribution)), w) + "\n")
	}
	out.WriteString(drawBoxBottom(w) + "\n")

	cl.mu.Lock()
	defer cl.mu.Unlock()
	fmt.Fprint(cl.writer, out.String())
}

func tallyStatuses(record *planstore.Record) (completed, failed, blocked int) {
	for _, res := range record.Results {
		switch res.Status {
		case artifact.StatusCompleted:
			completed++
		case artifact.StatusFailed:
			failed++
		case artifact.StatusBlocked:
			blocked++
		}
	}
	return
}

func formatDistribution(dist map[string]int) string {
	tiers := make([]string, 0, len(dist))
	for tier := range dist {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)

	parts := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		parts = append(parts, fmt.Sprintf("%s=%d", tier, dist[tier]))
	}
	return strings.Join(parts, " ")
}

func truncateGoal(goal string) string {
	const max = 200
	if len(goal) <= max {
		return goal
	}
	return goal[:max-3] + "..."
}
