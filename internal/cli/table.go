package cli

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// renderTable writes rows under header as a bordered text table.
func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// diagnosticRows flattens diagnostics into table rows.
func diagnosticRows(ds []Diagnostic) [][]string {
	rows := make([][]string, 0, len(ds))
	for _, d := range ds {
		where := d.Path
		if where == "" {
			where = d.Node
		}
		msg := d.Message
		if d.Property != "" {
			msg = d.Property + ": " + msg
		}
		rows = append(rows, []string{d.Code, where, msg})
	}
	return rows
}

var diagnosticHeader = []string{"Code", "Where", "Message"}
