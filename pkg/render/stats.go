package render

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/shelfrank/pkg/engine"
)

const statsTitle = "Stream statistics"

// StatsTable renders stats as a borderless two-column table.
func StatsTable(stats engine.Stats) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendRows([]table.Row{
		{"prepends", humanize.Comma(stats.Prepends)},
		{"appends", humanize.Comma(stats.Appends)},
		{"queries", humanize.Comma(stats.Queries)},
		{"length", humanize.Comma(stats.Length)},
		{"max answer", humanize.Comma(stats.MaxAnswer)},
		{"duration", stats.Duration.String()},
	})

	tbl.AppendFooter(table.Row{"commands", humanize.Comma(stats.Commands())})

	return tbl.Render()
}

// WriteStats writes a titled stats table to w.
func WriteStats(w io.Writer, stats engine.Stats) error {
	title := color.New(color.Bold, color.FgCyan).Sprint(statsTitle)

	_, err := fmt.Fprintf(w, "%s\n%s\n", title, StatsTable(stats))
	if err != nil {
		return fmt.Errorf("write stats: %w", err)
	}

	return nil
}
