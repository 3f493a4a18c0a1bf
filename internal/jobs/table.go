package jobs

import (
	"fmt"

	"madrasah/internal/cli"
)

// ReportTable lays a report out one organisation per row; updatedHeader
// names what Updated counts for the job
func ReportTable(report *Report, updatedHeader string) *cli.Table {
	table := cli.NewTable("org", "slug", updatedHeader, "error")
	for _, result := range report.Results {
		table.NewRow(result.OrgId, result.Slug, result.Updated, result.Error)
	}
	table.NewRow("total", fmt.Sprintf("%d orgs", report.Orgs), report.Updated, fmt.Sprintf("%d failed", report.Failed))
	return table
}
