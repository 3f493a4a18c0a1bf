package controller

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/billing"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"

	"github.com/gorilla/mux"
)

func registerPaymentRoutes(opts RouteRegistrationOpts) {
	app := opts.App
	inOrg := app.requires(access.Requirement{ActiveOrg: true})
	manage := app.requires(access.Requirement{Permissions: []access.Permission{access.PermPaymentsManage}})
	invoices := app.requires(access.Requirement{Permissions: []access.Permission{access.PermInvoicesManage}})

	v1 := opts.Router.PathPrefix("/v1").Subrouter()
	v1.Handle("/payments/records", inOrg(http.HandlerFunc(app.handleListRecordsV1))).Methods(http.MethodGet)
	v1.Handle("/payments/records/generate", manage(http.HandlerFunc(app.handleGenerateRecordsV1))).Methods(http.MethodPost)
	v1.Handle("/payments/records/recalculate", manage(http.HandlerFunc(app.handleRecalculateV1))).Methods(http.MethodPost)
	v1.Handle("/payments/records/{recordId}/pay", manage(http.HandlerFunc(app.handlePayRecordV1))).Methods(http.MethodPost)
	v1.Handle("/payments", inOrg(http.HandlerFunc(app.handleListPaymentsV1))).Methods(http.MethodGet)
	v1.Handle("/invoices", inOrg(http.HandlerFunc(app.handleListInvoicesV1))).Methods(http.MethodGet)
	v1.Handle("/invoices", invoices(http.HandlerFunc(app.handleCreateInvoiceV1))).Methods(http.MethodPost)
	v1.Handle("/invoices/{invoiceId}/pay", manage(http.HandlerFunc(app.handlePayInvoiceV1))).Methods(http.MethodPost)
}

// paymentScope returns the students whose payments the caller may see;
// a nil slice with ok set means every student of the organisation
func (a *application) paymentScope(r *http.Request) (studentIds []string, ok bool, err error) {
	caller := principal(r)
	if caller.HasPermission(access.PermPaymentsView) {
		return nil, true, nil
	}
	if !caller.HasPermission(access.PermOwnPaymentsView) {
		return nil, false, fmt.Errorf("payments cannot be viewed: %w", access.ErrForbidden)
	}
	children, err := a.store.ListStudents(r.Context(), caller.OrgId, store.StudentFilter{ParentId: &caller.UserId, IncludeArchived: true})
	if err != nil {
		return nil, false, err
	}
	studentIds = []string{}
	for _, child := range children {
		studentIds = append(studentIds, child.Id)
	}
	return studentIds, len(studentIds) > 0, nil
}

func (a *application) handleListRecordsV1(w http.ResponseWriter, r *http.Request) {
	studentIds, ok, err := a.paymentScope(r)
	if err != nil {
		sendError(w, r, "failed to list payment records", err)
		return
	}
	if !ok {
		common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", []models.MonthlyPaymentRecord{})
		return
	}
	filter := store.RecordFilter{StudentIds: studentIds, UnpaidOnly: r.URL.Query().Get("unpaid") == "true"}
	if month := r.URL.Query().Get("month"); month != "" {
		if _, _, err := billing.ParseMonth(month); err != nil {
			sendError(w, r, "failed to read month", err)
			return
		}
		filter.Month = &month
	}
	if studentId := r.URL.Query().Get("studentId"); studentId != "" {
		if studentIds != nil && !slices.Contains(studentIds, studentId) {
			common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", []models.MonthlyPaymentRecord{})
			return
		}
		filter.StudentIds = []string{studentId}
	}
	records, err := a.store.ListMonthlyRecords(r.Context(), principal(r).OrgId, filter)
	if err != nil {
		sendError(w, r, "failed to list payment records", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", records)
}

type handleGenerateRecordsV1Input struct {
	Month string `json:"month" validate:"required,month"`
}

func (a *application) handleGenerateRecordsV1(w http.ResponseWriter, r *http.Request) {
	var input handleGenerateRecordsV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read month", err)
		return
	}
	caller := principal(r)
	result, err := a.billing.GenerateMonthlyRecords(r.Context(), caller.OrgId, input.Month)
	if err != nil {
		sendError(w, r, "failed to generate payment records", err)
		return
	}
	a.orgAudit(r, audit.ActionRecordsGenerated, audit.TargetOrg, caller.OrgId, map[string]any{
		"month":   input.Month,
		"created": result.Created,
		"skipped": result.Skipped,
	})
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", result)
}

func (a *application) handleRecalculateV1(w http.ResponseWriter, r *http.Request) {
	result, err := a.billing.RecalculateOrg(r.Context(), principal(r).OrgId, time.Now())
	if err != nil {
		sendError(w, r, "failed to recalculate statuses", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", result)
}

type payInput struct {
	Method    string  `json:"method" validate:"required,oneof=CARD CASH BANK_TRANSFER"`
	Reference *string `json:"reference" validate:"omitempty,max=128"`
	PaidOn    string  `json:"paidOn" validate:"omitempty,isodate"`
	AmountP   *int64  `json:"amountP" validate:"omitempty,min=0"`
}

// markPaidOpts turns the request into billing options; the payer is
// the student's primary parent when one is linked
func (a *application) markPaidOpts(r *http.Request, input payInput, studentId string) (billing.MarkPaidOpts, error) {
	caller := principal(r)
	opts := billing.MarkPaidOpts{
		OrgId:     caller.OrgId,
		ActorId:   &caller.UserId,
		Method:    models.PaymentMethod(input.Method),
		Reference: input.Reference,
		PaidAt:    time.Now().UTC(),
		AmountP:   input.AmountP,
	}
	if input.PaidOn != "" {
		paidOn, err := time.Parse(time.DateOnly, input.PaidOn)
		if err != nil {
			return opts, fmt.Errorf("paidOn is not a date: %w", ErrorInvalidInput)
		}
		opts.PaidAt = paidOn
	}
	student, err := a.store.GetStudent(r.Context(), caller.OrgId, studentId)
	if err != nil {
		return opts, err
	}
	opts.PayerId = student.PrimaryParentId
	return opts, nil
}

func (a *application) handlePayRecordV1(w http.ResponseWriter, r *http.Request) {
	var input payInput
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read payment", err)
		return
	}
	caller := principal(r)
	record, err := a.store.GetMonthlyRecord(r.Context(), caller.OrgId, mux.Vars(r)["recordId"])
	if err != nil {
		sendError(w, r, "failed to get payment record", err)
		return
	}
	opts, err := a.markPaidOpts(r, input, record.StudentId)
	if err != nil {
		sendError(w, r, "failed to read payment", err)
		return
	}
	paid, err := a.billing.MarkRecordPaid(r.Context(), record.Id, opts)
	if err != nil {
		sendError(w, r, "failed to mark record paid", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", paid)
}

func (a *application) handleListPaymentsV1(w http.ResponseWriter, r *http.Request) {
	studentIds, ok, err := a.paymentScope(r)
	if err != nil {
		sendError(w, r, "failed to list payments", err)
		return
	}
	if !ok {
		common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", []models.Payment{})
		return
	}
	filter := store.PaymentFilter{StudentIds: studentIds}
	for key, target := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		value := r.URL.Query().Get(key)
		if value == "" {
			continue
		}
		parsed, err := time.Parse(time.DateOnly, value)
		if err != nil {
			sendError(w, r, "failed to read range", fmt.Errorf("%s is not a date: %w", key, ErrorInvalidInput))
			return
		}
		if key == "to" {
			parsed = parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		*target = &parsed
	}
	if outcome := r.URL.Query().Get("outcome"); outcome != "" {
		filter.Outcome = models.Ptr(models.PaymentOutcome(strings.ToUpper(outcome)))
	}
	payments, err := a.store.ListPayments(r.Context(), principal(r).OrgId, filter)
	if err != nil {
		sendError(w, r, "failed to list payments", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", payments)
}

func (a *application) handleListInvoicesV1(w http.ResponseWriter, r *http.Request) {
	studentIds, ok, err := a.paymentScope(r)
	if err != nil {
		sendError(w, r, "failed to list invoices", err)
		return
	}
	if !ok {
		common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", []models.Invoice{})
		return
	}
	invoices, err := a.store.ListInvoices(r.Context(), principal(r).OrgId, store.InvoiceFilter{
		StudentIds: studentIds,
		UnpaidOnly: r.URL.Query().Get("unpaid") == "true",
	})
	if err != nil {
		sendError(w, r, "failed to list invoices", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", invoices)
}

type handleCreateInvoiceV1Input struct {
	StudentId   string `json:"studentId" validate:"required"`
	AmountP     int64  `json:"amountP" validate:"required,min=1"`
	Description string `json:"description" validate:"required,max=256"`
	DueDate     string `json:"dueDate" validate:"required,isodate"`
}

func (a *application) handleCreateInvoiceV1(w http.ResponseWriter, r *http.Request) {
	var input handleCreateInvoiceV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read invoice", err)
		return
	}
	ctx := r.Context()
	caller := principal(r)
	if _, err := a.store.GetStudent(ctx, caller.OrgId, input.StudentId); err != nil {
		sendError(w, r, "failed to get student", err)
		return
	}
	org, err := a.store.GetOrg(ctx, caller.OrgId)
	if err != nil {
		sendError(w, r, "failed to get organisation", err)
		return
	}
	dueDate, err := time.ParseInLocation(time.DateOnly, input.DueDate, org.Settings.Location(time.UTC))
	if err != nil {
		sendError(w, r, "failed to read invoice", fmt.Errorf("dueDate is not a date: %w", ErrorInvalidInput))
		return
	}
	invoice := &models.Invoice{
		OrgId:       caller.OrgId,
		StudentId:   input.StudentId,
		AmountP:     input.AmountP,
		Description: strings.TrimSpace(input.Description),
		DueDate:     dueDate.Add(24*time.Hour - time.Millisecond),
		Status:      models.InvoiceStatusPending,
	}
	invoice.Status = billing.CalculateInvoiceStatus(*invoice, time.Now())
	if err := a.store.CreateInvoice(ctx, invoice); err != nil {
		sendError(w, r, "failed to create invoice", err)
		return
	}
	a.orgAudit(r, audit.ActionInvoiceCreated, audit.TargetInvoice, invoice.Id, map[string]any{
		"studentId": invoice.StudentId,
		"amountP":   invoice.AmountP,
	})
	common.SendHttpSuccessResponse(w, r, http.StatusCreated, "ok", invoice)
}

func (a *application) handlePayInvoiceV1(w http.ResponseWriter, r *http.Request) {
	var input payInput
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read payment", err)
		return
	}
	caller := principal(r)
	invoice, err := a.store.GetInvoice(r.Context(), caller.OrgId, mux.Vars(r)["invoiceId"])
	if err != nil {
		sendError(w, r, "failed to get invoice", err)
		return
	}
	opts, err := a.markPaidOpts(r, input, invoice.StudentId)
	if err != nil {
		sendError(w, r, "failed to read payment", err)
		return
	}
	paid, err := a.billing.MarkInvoicePaid(r.Context(), invoice.Id, opts)
	if err != nil {
		sendError(w, r, "failed to mark invoice paid", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", paid)
}
