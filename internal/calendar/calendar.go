// Package calendar renders outstanding fee due dates as an iCalendar
// feed that parents and admins can subscribe to
package calendar

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"madrasah/internal/billing"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

const (
	ContentType = "text/calendar; charset=utf-8"

	productId = "-//Madrasah OS//Fees//EN"
	dateValue = "20060102"
	stampUtc  = "20060102T150405Z"
	lineLimit = 75
)

type Store interface {
	store.OrgStore
	store.StudentStore
	store.ClassStore
	store.BillingStore
}

// Event is a single all-day fee reminder
type Event struct {
	Uid         string
	Date        time.Time
	Summary     string
	Description string
}

type Options struct {
	// ParentId restricts the feed to the children of one parent
	ParentId *string
	Now      time.Time
}

type Builder struct {
	Store       Store
	ServiceLogs chan<- common.ServiceLog
}

// FeeEvents lists one event per unpaid monthly record with a resolvable
// due day and one per unpaid invoice, ordered by date
func (b *Builder) FeeEvents(ctx context.Context, orgId string, opts Options) ([]Event, error) {
	org, err := b.Store.GetOrg(ctx, orgId)
	if err != nil {
		return nil, fmt.Errorf("failed to get org[%s]: %w", orgId, err)
	}
	students, err := b.Store.ListStudents(ctx, orgId, store.StudentFilter{ParentId: opts.ParentId})
	if err != nil {
		return nil, fmt.Errorf("failed to list students of org[%s]: %w", orgId, err)
	}
	events := []Event{}
	if len(students) == 0 {
		return events, nil
	}
	studentIds := make([]string, 0, len(students))
	names := make(map[string]string, len(students))
	for _, student := range students {
		studentIds = append(studentIds, student.Id)
		names[student.Id] = student.FullName()
	}
	classes, err := b.Store.ListClasses(ctx, orgId)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes of org[%s]: %w", orgId, err)
	}
	classesById := make(map[string]models.Class, len(classes))
	for _, class := range classes {
		classesById[class.Id] = class
	}
	location := org.Settings.Location(time.UTC)

	records, err := b.Store.ListMonthlyRecords(ctx, orgId, store.RecordFilter{StudentIds: studentIds, UnpaidOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list records of org[%s]: %w", orgId, err)
	}
	for _, record := range records {
		class, ok := classesById[record.ClassId]
		if !ok {
			continue
		}
		dueDay := billing.ResolveFeeDueDay(class, org.Settings)
		if dueDay == nil {
			continue
		}
		dueDate, err := billing.DueDate(record.Month, *dueDay, location)
		if err != nil {
			b.log(common.LogLevelWarn, "skipping record[%s] in fee calendar: %s", record.Id, err)
			continue
		}
		events = append(events, Event{
			Uid:         record.Id + "@madrasah",
			Date:        dueDate,
			Summary:     fmt.Sprintf("%s fee due: %s (£%s)", class.Name, names[record.StudentId], billing.FormatAmount(record.AmountP)),
			Description: fmt.Sprintf("Monthly fee for %s, status %s", record.Month, record.Status),
		})
	}

	invoices, err := b.Store.ListInvoices(ctx, orgId, store.InvoiceFilter{StudentIds: studentIds, UnpaidOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices of org[%s]: %w", orgId, err)
	}
	for _, invoice := range invoices {
		if invoice.Status == models.InvoiceStatusCancelled {
			continue
		}
		events = append(events, Event{
			Uid:         invoice.Id + "@madrasah",
			Date:        invoice.DueDate.In(location),
			Summary:     fmt.Sprintf("Invoice due: %s (£%s)", names[invoice.StudentId], billing.FormatAmount(invoice.AmountP)),
			Description: invoice.Description,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	return events, nil
}

// Write renders events as a VCALENDAR document with CRLF line endings
// and lines folded at 75 octets
func Write(w io.Writer, name string, events []Event, now time.Time) error {
	var builder strings.Builder
	line := func(content string) {
		builder.WriteString(fold(content))
		builder.WriteString("\r\n")
	}
	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:" + productId)
	line("CALSCALE:GREGORIAN")
	line("METHOD:PUBLISH")
	line("X-WR-CALNAME:" + escape(name))
	stamp := now.UTC().Format(stampUtc)
	for _, event := range events {
		line("BEGIN:VEVENT")
		line("UID:" + event.Uid)
		line("DTSTAMP:" + stamp)
		line("DTSTART;VALUE=DATE:" + event.Date.Format(dateValue))
		line("DTEND;VALUE=DATE:" + event.Date.AddDate(0, 0, 1).Format(dateValue))
		line("SUMMARY:" + escape(event.Summary))
		if event.Description != "" {
			line("DESCRIPTION:" + escape(event.Description))
		}
		line("TRANSP:TRANSPARENT")
		line("END:VEVENT")
	}
	line("END:VCALENDAR")
	_, err := io.WriteString(w, builder.String())
	return err
}

func escape(value string) string {
	return strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
	).Replace(value)
}

// fold splits a content line into chunks of at most 75 octets without
// breaking multi-byte characters; continuation lines start with a space
func fold(content string) string {
	if len(content) <= lineLimit {
		return content
	}
	var builder strings.Builder
	limit := lineLimit
	width := 0
	for _, r := range content {
		size := len(string(r))
		if width+size > limit {
			builder.WriteString("\r\n ")
			width = 0
			limit = lineLimit - 1
		}
		builder.WriteRune(r)
		width += size
	}
	return builder.String()
}

func (b *Builder) log(level, format string, args ...any) {
	if b.ServiceLogs != nil {
		b.ServiceLogs <- common.ServiceLogf(level, format, args...)
	}
}
