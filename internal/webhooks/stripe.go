package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"madrasah/internal/billing"
	"madrasah/internal/cache"
	"madrasah/internal/common"
	"madrasah/internal/lifecycle"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

const (
	maxPayloadBytes = 1 << 20
	dedupeTtl       = 72 * time.Hour
)

const (
	StripeInvoicePaymentFailed    = "invoice.payment_failed"
	StripeInvoicePaymentSucceeded = "invoice.payment_succeeded"
	StripeInvoicePaid             = "invoice.paid"
	StripeIntentSucceeded         = "payment_intent.succeeded"
	StripeIntentFailed            = "payment_intent.payment_failed"
)

var (
	ErrUnknownCustomer = errors.New("unknown_stripe_customer")
	ErrMissingMetadata = errors.New("missing_payment_metadata")
)

// StripeEvent is the subset of a Stripe event envelope that is used
type StripeEvent struct {
	Id      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeInvoice struct {
	Id           string `json:"id"`
	Customer     string `json:"customer"`
	AmountDue    int64  `json:"amount_due"`
	AmountPaid   int64  `json:"amount_paid"`
	AttemptCount int    `json:"attempt_count"`
}

type stripePaymentIntent struct {
	Id               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// StripeHandler turns Stripe events into lifecycle and billing calls.
// Platform subscription invoices drive the organisation lifecycle;
// payment intents created for school fees carry orgId and recordId or
// invoiceId in their metadata.
type StripeHandler struct {
	Store       store.Store
	Lifecycle   *lifecycle.Manager
	Billing     *billing.Service
	Cache       cache.Cache
	Secret      string
	Tolerance   time.Duration
	ServiceLogs chan<- common.ServiceLog

	now func() time.Time
}

func (h *StripeHandler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *StripeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		common.SendHttpFailResponse(w, r, http.StatusBadRequest, "failed to read payload", err)
		return
	}
	if err := VerifyStripeSignature(payload, r.Header.Get("Stripe-Signature"), h.Secret, h.clock(), h.Tolerance); err != nil {
		eventsCounter.WithLabelValues("stripe", "unknown", "rejected").Inc()
		common.SendHttpFailResponse(w, r, http.StatusBadRequest, "failed to verify signature", err)
		return
	}
	var event StripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		common.SendHttpFailResponse(w, r, http.StatusBadRequest, "failed to parse event", err)
		return
	}
	if err := h.Handle(r.Context(), event); err != nil {
		eventsCounter.WithLabelValues("stripe", event.Type, "error").Inc()
		common.SendHttpFailResponse(w, r, http.StatusInternalServerError, "failed to process event", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", map[string]any{"received": true})
}

// Handle processes one verified event. Events seen before are
// skipped; unknown types are acknowledged.
func (h *StripeHandler) Handle(ctx context.Context, event StripeEvent) error {
	if duplicate, err := h.seen(ctx, event.Id); err != nil {
		h.log(common.LogLevelWarn, "failed to check stripe event[%s] for replays: %s", event.Id, err)
	} else if duplicate {
		eventsCounter.WithLabelValues("stripe", event.Type, "duplicate").Inc()
		h.log(common.LogLevelInfo, "skipping replayed stripe event[%s]", event.Id)
		return nil
	}
	at := time.Unix(event.Created, 0)
	if event.Created == 0 {
		at = h.clock()
	}

	var err error
	switch event.Type {
	case StripeInvoicePaymentFailed:
		err = h.handleInvoiceFailed(ctx, event, at)
	case StripeInvoicePaymentSucceeded, StripeInvoicePaid:
		err = h.handleInvoicePaid(ctx, event)
	case StripeIntentSucceeded:
		err = h.handleIntentSucceeded(ctx, event, at)
	case StripeIntentFailed:
		err = h.handleIntentFailed(ctx, event, at)
	default:
		eventsCounter.WithLabelValues("stripe", "other", "ignored").Inc()
		h.log(common.LogLevelDebug, "ignoring stripe event[%s] of type %s", event.Id, event.Type)
		return nil
	}
	if err != nil {
		h.forget(ctx, event.Id)
		return err
	}
	eventsCounter.WithLabelValues("stripe", event.Type, "processed").Inc()
	return nil
}

func (h *StripeHandler) handleInvoiceFailed(ctx context.Context, event StripeEvent, at time.Time) error {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return fmt.Errorf("failed to parse invoice of event[%s]: %w", event.Id, err)
	}
	org, err := h.orgForCustomer(ctx, invoice.Customer)
	if err != nil {
		return err
	}
	if org == nil {
		return nil
	}
	reason := fmt.Sprintf("stripe invoice %s payment failed (attempt %d)", invoice.Id, invoice.AttemptCount)
	_, err = h.Lifecycle.HandlePaymentFailure(ctx, org.Id, reason, invoice.AmountDue, at)
	return err
}

func (h *StripeHandler) handleInvoicePaid(ctx context.Context, event StripeEvent) error {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return fmt.Errorf("failed to parse invoice of event[%s]: %w", event.Id, err)
	}
	org, err := h.orgForCustomer(ctx, invoice.Customer)
	if err != nil {
		return err
	}
	if org == nil {
		return nil
	}
	_, err = h.Lifecycle.HandlePaymentSuccess(ctx, org.Id, invoice.AmountPaid)
	return err
}

func (h *StripeHandler) handleIntentSucceeded(ctx context.Context, event StripeEvent, at time.Time) error {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return fmt.Errorf("failed to parse payment intent of event[%s]: %w", event.Id, err)
	}
	orgId := intent.Metadata["orgId"]
	recordId := intent.Metadata["recordId"]
	invoiceId := intent.Metadata["invoiceId"]
	if orgId == "" || (recordId == "" && invoiceId == "") {
		h.log(common.LogLevelWarn, "payment intent[%s] has no school payment metadata: %s", intent.Id, ErrMissingMetadata)
		return nil
	}
	opts := billing.MarkPaidOpts{
		OrgId:             orgId,
		Method:            models.PaymentMethodCard,
		ProviderReference: &intent.Id,
		PaidAt:            at,
		AmountP:           &intent.Amount,
		Confirmed:         true,
	}
	if payerId := intent.Metadata["payerId"]; payerId != "" {
		opts.PayerId = &payerId
	}
	var err error
	if recordId != "" {
		_, err = h.Billing.MarkRecordPaid(ctx, recordId, opts)
	} else {
		_, err = h.Billing.MarkInvoicePaid(ctx, invoiceId, opts)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, billing.ErrAlreadyPaid):
		h.log(common.LogLevelInfo, "payment intent[%s] targets an already paid item", intent.Id)
		return nil
	case errors.Is(err, billing.ErrAmountMismatch):
		h.log(common.LogLevelWarn, "payment intent[%s] in org[%s] was not applied: %s", intent.Id, orgId, err)
		return h.recordFailedIntent(ctx, intent, billing.ErrAmountMismatch.Error(), at)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, billing.ErrInvoiceCancelled):
		// the metadata does not match anything payable in that org
		h.log(common.LogLevelWarn, "payment intent[%s] could not be applied in org[%s]: %s", intent.Id, orgId, err)
		return nil
	}
	return err
}

func (h *StripeHandler) handleIntentFailed(ctx context.Context, event StripeEvent, at time.Time) error {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return fmt.Errorf("failed to parse payment intent of event[%s]: %w", event.Id, err)
	}
	reason := "card payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Message != "" {
		reason = intent.LastPaymentError.Message
	}
	return h.recordFailedIntent(ctx, intent, reason, at)
}

// recordFailedIntent stores a FAILED payment against the record or
// invoice named in the intent metadata
func (h *StripeHandler) recordFailedIntent(ctx context.Context, intent stripePaymentIntent, reason string, at time.Time) error {
	orgId := intent.Metadata["orgId"]
	opts := billing.FailedPaymentOpts{
		OrgId:             orgId,
		AmountP:           intent.Amount,
		ProviderReference: &intent.Id,
		Reason:            reason,
		At:                at,
	}
	if recordId := intent.Metadata["recordId"]; recordId != "" {
		record, err := h.Store.GetMonthlyRecord(ctx, orgId, recordId)
		if err != nil {
			return h.skipMissing(intent.Id, orgId, err)
		}
		opts.RecordId = &record.Id
		opts.StudentId = record.StudentId
	} else if invoiceId := intent.Metadata["invoiceId"]; invoiceId != "" {
		invoice, err := h.Store.GetInvoice(ctx, orgId, invoiceId)
		if err != nil {
			return h.skipMissing(intent.Id, orgId, err)
		}
		opts.InvoiceId = &invoice.Id
		opts.StudentId = invoice.StudentId
	} else {
		h.log(common.LogLevelWarn, "payment intent[%s] has no school payment metadata: %s", intent.Id, ErrMissingMetadata)
		return nil
	}
	_, err := h.Billing.RecordFailedPayment(ctx, opts)
	return err
}

func (h *StripeHandler) skipMissing(intentId, orgId string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		h.log(common.LogLevelWarn, "payment intent[%s] targets nothing in org[%s]", intentId, orgId)
		return nil
	}
	return err
}

// orgForCustomer returns nil without an error for customers that are
// not linked to any organisation
func (h *StripeHandler) orgForCustomer(ctx context.Context, customerId string) (*models.Org, error) {
	org, err := h.Store.GetOrgByStripeCustomer(ctx, customerId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.log(common.LogLevelWarn, "stripe customer[%s]: %s", customerId, ErrUnknownCustomer)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up stripe customer[%s]: %w", customerId, err)
	}
	return org, nil
}

func dedupeKey(eventId string) string {
	return "webhook:stripe:" + eventId
}

func (h *StripeHandler) seen(ctx context.Context, eventId string) (bool, error) {
	if h.Cache == nil || eventId == "" {
		return false, nil
	}
	count, err := h.Cache.Incr(ctx, dedupeKey(eventId))
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := h.Cache.Expire(ctx, dedupeKey(eventId), dedupeTtl); err != nil {
			return false, err
		}
	}
	return count > 1, nil
}

// forget lets Stripe's retry of a failed event through
func (h *StripeHandler) forget(ctx context.Context, eventId string) {
	if h.Cache == nil || eventId == "" {
		return
	}
	if err := h.Cache.Del(ctx, dedupeKey(eventId)); err != nil {
		h.log(common.LogLevelWarn, "failed to clear replay marker of stripe event[%s]: %s", eventId, err)
	}
}

func (h *StripeHandler) log(level, format string, args ...any) {
	if h.ServiceLogs != nil {
		h.ServiceLogs <- common.ServiceLogf(level, format, args...)
	}
}
