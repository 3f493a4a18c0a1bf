package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"madrasah/internal/common"
)

var whatsappStatuses = map[string]struct{}{
	"sent":      {},
	"delivered": {},
	"read":      {},
	"failed":    {},
}

type whatsappPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Id      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Statuses []WhatsappStatus `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// WhatsappStatus is a delivery update for an outbound message
type WhatsappStatus struct {
	Id          string `json:"id"`
	Status      string `json:"status"`
	RecipientId string `json:"recipient_id"`
	Timestamp   string `json:"timestamp"`
	Errors      []struct {
		Code  int    `json:"code"`
		Title string `json:"title"`
	} `json:"errors"`
}

// WhatsappHandler answers the subscription challenge and receives
// signed delivery status callbacks
type WhatsappHandler struct {
	VerifyToken string
	AppSecret   string
	ServiceLogs chan<- common.ServiceLog

	// OnStatus is called for every status update in a verified payload
	OnStatus func(WhatsappStatus)
}

func (h *WhatsappHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleChallenge(w, r)
	case http.MethodPost:
		h.handleCallback(w, r)
	default:
		common.SendHttpFailResponse(w, r, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *WhatsappHandler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")
	if mode != "subscribe" || h.VerifyToken == "" || token != h.VerifyToken {
		eventsCounter.WithLabelValues("whatsapp", "challenge", "rejected").Inc()
		common.SendHttpFailResponse(w, r, http.StatusForbidden, "verification failed", ErrSignatureInvalid)
		return
	}
	eventsCounter.WithLabelValues("whatsapp", "challenge", "processed").Inc()
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

func (h *WhatsappHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		common.SendHttpFailResponse(w, r, http.StatusBadRequest, "failed to read payload", err)
		return
	}
	if err := VerifyHubSignature(payload, r.Header.Get("X-Hub-Signature-256"), h.AppSecret); err != nil {
		eventsCounter.WithLabelValues("whatsapp", "unknown", "rejected").Inc()
		common.SendHttpFailResponse(w, r, http.StatusUnauthorized, "failed to verify signature", err)
		return
	}
	var body whatsappPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		common.SendHttpFailResponse(w, r, http.StatusBadRequest, "failed to parse payload", err)
		return
	}
	count := 0
	for _, entry := range body.Entry {
		for _, change := range entry.Changes {
			for _, status := range change.Value.Statuses {
				h.handleStatus(status)
				count++
			}
		}
	}
	eventsCounter.WithLabelValues("whatsapp", "statuses", "processed").Inc()
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", map[string]any{"statuses": count})
}

func (h *WhatsappHandler) handleStatus(status WhatsappStatus) {
	label := strings.ToLower(status.Status)
	if _, ok := whatsappStatuses[label]; !ok {
		label = "other"
	}
	whatsappStatusesCounter.WithLabelValues(label).Inc()
	if label == "failed" {
		reasons := []string{}
		for _, e := range status.Errors {
			reasons = append(reasons, e.Title)
		}
		h.log(common.LogLevelWarn, "whatsapp message[%s] to recipient[%s] failed: %s", status.Id, status.RecipientId, strings.Join(reasons, ", "))
	} else {
		h.log(common.LogLevelDebug, "whatsapp message[%s] is %s", status.Id, label)
	}
	if h.OnStatus != nil {
		h.OnStatus(status)
	}
}

func (h *WhatsappHandler) log(level, format string, args ...any) {
	if h.ServiceLogs != nil {
		h.ServiceLogs <- common.ServiceLogf(level, format, args...)
	}
}
