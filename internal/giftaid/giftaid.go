// Package giftaid builds the Gift Aid donations schedule for an
// organisation: successful payments made by parents holding a Gift Aid
// declaration, laid out in the column order of the HMRC schedule
package giftaid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"madrasah/internal/billing"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Schedule"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	dateLayout = "02/01/06"
)

var ErrInvalidRange = errors.New("invalid_date_range")

var Headers = []string{
	"Title",
	"First name or initial",
	"Last name",
	"House name or number",
	"Postcode",
	"Aggregated donations",
	"Sponsored event",
	"Donation date",
	"Amount",
}

type Store interface {
	store.BillingStore
	store.StudentStore
	store.UserStore
}

// Row is one donation line of the schedule
type Row struct {
	PaymentId   string    `json:"paymentId"`
	DonorId     string    `json:"donorId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	House       string    `json:"house"`
	Postcode    string    `json:"postcode"`
	DonatedAt   time.Time `json:"donatedAt"`
	AmountP     int64     `json:"amountP"`
	StudentName string    `json:"studentName"`
}

type Schedule struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	Rows         []Row     `json:"rows"`
	TotalP       int64     `json:"totalP"`
	SkippedCount int       `json:"skipped"`
}

type Exporter struct {
	Store       Store
	ServiceLogs chan<- common.ServiceLog
}

// Build collects the successful payments of an org between from and to
// (inclusive) whose payer has a Gift Aid declaration. Payments without
// a recorded payer are attributed to the student's primary parent.
func (e *Exporter) Build(ctx context.Context, orgId string, from, to time.Time) (*Schedule, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("to[%s] is before from[%s]: %w", to.Format(time.DateOnly), from.Format(time.DateOnly), ErrInvalidRange)
	}
	succeeded := models.PaymentOutcomeSucceeded
	payments, err := e.Store.ListPayments(ctx, orgId, store.PaymentFilter{From: &from, To: &to, Outcome: &succeeded})
	if err != nil {
		return nil, fmt.Errorf("failed to list payments of org[%s]: %w", orgId, err)
	}
	students, err := e.Store.ListStudents(ctx, orgId, store.StudentFilter{IncludeArchived: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list students of org[%s]: %w", orgId, err)
	}
	studentsById := make(map[string]models.Student, len(students))
	for _, student := range students {
		studentsById[student.Id] = student
	}

	donorIds := []string{}
	seen := map[string]struct{}{}
	donorOf := make(map[string]string, len(payments))
	for _, payment := range payments {
		donorId := ""
		if payment.PayerId != nil {
			donorId = *payment.PayerId
		} else if student, ok := studentsById[payment.StudentId]; ok && student.PrimaryParentId != nil {
			donorId = *student.PrimaryParentId
		}
		if donorId == "" {
			continue
		}
		if _, ok := seen[donorId]; !ok {
			seen[donorId] = struct{}{}
			donorIds = append(donorIds, donorId)
		}
		donorOf[payment.Id] = donorId
	}
	users, err := e.Store.ListUsers(ctx, donorIds)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors of org[%s]: %w", orgId, err)
	}
	donors := make(map[string]models.User, len(users))
	for _, user := range users {
		if user.GiftAidDeclared {
			donors[user.Id] = user
		}
	}

	schedule := &Schedule{From: from, To: to, Rows: []Row{}}
	for _, payment := range payments {
		donor, ok := donors[donorOf[payment.Id]]
		if !ok {
			schedule.SkippedCount++
			continue
		}
		first, last := splitName(donor.Name)
		row := Row{
			PaymentId: payment.Id,
			DonorId:   donor.Id,
			FirstName: first,
			LastName:  last,
			DonatedAt: payment.CreatedAt,
			AmountP:   payment.AmountP,
		}
		if donor.AddressLine != nil {
			row.House = houseOf(*donor.AddressLine)
		}
		if donor.Postcode != nil {
			row.Postcode = strings.ToUpper(strings.TrimSpace(*donor.Postcode))
		}
		if student, ok := studentsById[payment.StudentId]; ok {
			row.StudentName = student.FullName()
		}
		schedule.Rows = append(schedule.Rows, row)
		schedule.TotalP += payment.AmountP
	}
	sort.SliceStable(schedule.Rows, func(i, j int) bool {
		return schedule.Rows[i].DonatedAt.Before(schedule.Rows[j].DonatedAt)
	})
	if e.ServiceLogs != nil {
		e.ServiceLogs <- common.ServiceLogf(common.LogLevelDebug, "built gift aid schedule of org[%s] with %d rows (%d skipped)", orgId, len(schedule.Rows), schedule.SkippedCount)
	}
	return schedule, nil
}

// Write renders the schedule as an xlsx workbook
func (s *Schedule) Write(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for i, header := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(SheetName, cell, header)
	}
	for i, row := range s.Rows {
		line := i + 2
		f.SetCellValue(SheetName, fmt.Sprintf("B%d", line), row.FirstName)
		f.SetCellValue(SheetName, fmt.Sprintf("C%d", line), row.LastName)
		f.SetCellValue(SheetName, fmt.Sprintf("D%d", line), row.House)
		f.SetCellValue(SheetName, fmt.Sprintf("E%d", line), row.Postcode)
		f.SetCellValue(SheetName, fmt.Sprintf("H%d", line), row.DonatedAt.Format(dateLayout))
		f.SetCellValue(SheetName, fmt.Sprintf("I%d", line), billing.FormatAmount(row.AmountP))
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// FileName is the download name of a schedule for the given org slug
func (s *Schedule) FileName(slug string) string {
	return fmt.Sprintf("giftaid_%s_%s_%s.xlsx", slug, s.From.Format("20060102"), s.To.Format("20060102"))
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	index := strings.LastIndex(name, " ")
	if index < 0 {
		return name, ""
	}
	return strings.TrimSpace(name[:index]), name[index+1:]
}

// houseOf takes the leading house name or number of an address line:
// "12 High Street" gives "12", "Rose Cottage, Mill Lane" gives
// "Rose Cottage"
func houseOf(address string) string {
	address = strings.TrimSpace(address)
	if before, _, ok := strings.Cut(address, ","); ok {
		address = strings.TrimSpace(before)
	}
	if first, _, ok := strings.Cut(address, " "); ok && first != "" && first[0] >= '0' && first[0] <= '9' {
		return first
	}
	return address
}
