package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"dlstracker-backend/internal/tracker"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func formLine(form []tracker.Result) string {
	letters := make([]string, len(form))
	for i, r := range form {
		switch r {
		case tracker.Win:
			letters[i] = text.FgGreen.Sprint("W")
		case tracker.Draw:
			letters[i] = text.FgYellow.Sprint("D")
		default:
			letters[i] = text.FgRed.Sprint("L")
		}
	}
	return strings.Join(letters, " ")
}

func printResult(out io.Writer, res tracker.ScrapeResult) {
	if res.Status != tracker.StatusSuccess {
		fmt.Fprintf(out, "%s: %s\n", res.Status, res.Message)
		return
	}

	summary := newTable(out)
	summary.SetTitle(res.TeamName)
	if res.TeamStats != nil {
		summary.AppendRows([]table.Row{
			{"Games played", res.TeamStats.GamesPlayed},
			{"Won", res.TeamStats.GamesWon},
			{"Lost", res.TeamStats.GamesLost},
			{"Win %", fmt.Sprintf("%.1f", res.TeamStats.WinPercentage)},
		})
	}
	summary.AppendRow(table.Row{"Form", formLine(res.Form)})
	summary.Render()

	if res.RecentMatch != nil {
		m := res.RecentMatch
		date := "-"
		if m.Date != nil {
			date = *m.Date
		}
		fmt.Fprintf(
			out, "\nLast match: %s %d - %d %s (%s, %s)\n",
			m.HomeTeam, m.HomeScore, m.AwayScore, m.AwayTeam, m.Result, date,
		)
	}

	if !res.RecentMatchStats.Empty() {
		stats := newTable(out)
		stats.AppendHeader(table.Row{res.RecentMatchStats.HomeTeam, "", res.RecentMatchStats.AwayTeam})
		labels := make([]string, 0, len(res.RecentMatchStats.Stats))
		for label := range res.RecentMatchStats.Stats {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			pair := res.RecentMatchStats.Stats[label]
			stats.AppendRow(table.Row{pair.Home.String(), label, pair.Away.String()})
		}
		stats.Render()
	}

	if len(res.RecentMatchGoals) > 0 {
		goals := newTable(out)
		goals.AppendHeader(table.Row{"Time", "Scorer", "Team", "Assist"})
		for _, g := range res.RecentMatchGoals {
			goals.AppendRow(table.Row{g.Time, g.Scorer, g.Team, g.Assist})
		}
		goals.Render()
	}
}
