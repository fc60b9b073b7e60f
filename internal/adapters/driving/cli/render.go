package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// renderSummary prints the run report: counts, describe statistics,
// failed participants and artifact locations.
func renderSummary(w io.Writer, report *domain.RunReport, artifacts []Artifact) {
	st := newStyles(w)
	run := report.Run
	sum := report.Summary

	fmt.Fprintln(w, st.Title.Render("Run "+run.ID))
	fmt.Fprintf(w, "%s%s in %s\n", st.Label.Render("Status"), st.status(string(run.Status)), formatDuration(run.Duration()))
	fmt.Fprintf(w, "%s%d\n", st.Label.Render("Participants"), sum.Total)
	fmt.Fprintf(w, "%s%d (%d empty)\n", st.Label.Render("Succeeded"), sum.Succeeded, sum.Empty)
	failed := strconv.Itoa(sum.Failed)
	if sum.Failed > 0 {
		failed = st.Error.Render(failed)
	}
	fmt.Fprintf(w, "%s%s\n", st.Label.Render("Failed"), failed)
	fmt.Fprintf(w, "%s%d\n", st.Label.Render("With conversation"), sum.WithConversation)
	fmt.Fprintln(w)

	fmt.Fprintln(w, describeTable(st, sum))

	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.Title.Render("Failed participants"))
		fmt.Fprintln(w, outcomesTable(st, failures, false))
	}

	if len(artifacts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.Title.Render("Artifacts"))
		for _, a := range artifacts {
			fmt.Fprintf(w, "%s%s\n", st.Label.Render(a.Name), a.Location)
		}
	}
}

// describeTable renders count/mean/std/min/quartiles/max per metric column.
func describeTable(st outputStyles, sum domain.RunSummary) string {
	t := newTable(st).Headers("", "user_turn_count", "user_word_count")
	turns, words := sum.UserTurns, sum.UserWords
	t.Row("count", strconv.Itoa(turns.Count), strconv.Itoa(words.Count))
	for _, row := range []struct {
		name string
		a, b float64
	}{
		{"mean", turns.Mean, words.Mean},
		{"std", turns.Std, words.Std},
		{"min", turns.Min, words.Min},
		{"25%", turns.P25, words.P25},
		{"50%", turns.P50, words.P50},
		{"75%", turns.P75, words.P75},
		{"max", turns.Max, words.Max},
	} {
		t.Row(row.name, formatStat(row.a), formatStat(row.b))
	}
	return t.String()
}

// outcomesTable renders per-participant outcomes. withMetrics adds the
// metric columns.
func outcomesTable(st outputStyles, outcomes []domain.ParticipantOutcome, withMetrics bool) string {
	headers := []string{"#", "participant", "state", "reason"}
	if withMetrics {
		headers = append(headers, "turns", "words")
	}
	headers = append(headers, "error")

	t := newTable(st).Headers(headers...)
	for _, o := range outcomes {
		row := []string{strconv.Itoa(o.Position + 1), o.ParticipantID, string(o.State), string(o.Reason)}
		if withMetrics {
			row = append(row, strconv.Itoa(o.Metrics.UserTurnCount), strconv.Itoa(o.Metrics.UserWordCount))
		}
		row = append(row, truncate(o.ErrorMessage(), 80))
		t.Row(row...)
	}
	return t.String()
}

// runsTable renders a run list.
func runsTable(st outputStyles, runs []domain.Run) string {
	t := newTable(st).Headers("run", "status", "started", "duration", "participants", "succeeded", "failed", "empty")
	for _, r := range runs {
		t.Row(
			r.ID,
			string(r.Status),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatDuration(r.Duration()),
			strconv.Itoa(r.RosterSize),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Empty),
		)
	}
	return t.String()
}

func newTable(st outputStyles) *table.Table {
	header := st.renderer.NewStyle().Bold(true).Padding(0, 1)
	cell := st.renderer.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.Border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
}

func formatStat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
