package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"
)

// Table renders rows for terminal output, capped at the terminal width
// when stdout is a terminal
type Table struct {
	data  bytes.Buffer
	table *tablewriter.Table
}

func NewTable(headers ...string) *Table {
	t := &Table{}
	t.table = tablewriter.NewWriter(&t.data)
	t.table.Options(tablewriter.WithHeaderAlignment(tw.AlignLeft))
	t.table.Configure(func(cfg *tablewriter.Config) {
		if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
			cfg.MaxWidth = width
		}
	})
	t.table.Header(headers)
	return t
}

// NewRow appends a row, formatting values the same way in every table
func (t *Table) NewRow(values ...any) error {
	row := make([]string, 0, len(values))
	for _, value := range values {
		row = append(row, formatCell(value))
	}
	return t.table.Append(row)
}

func (t *Table) String() string {
	t.table.Render()
	return t.data.String()
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return "-"
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case string:
		if v == "" {
			return "-"
		}
		return v
	case []string:
		return strings.Join(v, ", ")
	case time.Duration:
		return v.Round(time.Millisecond).String()
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
