package controller

import (
	"net/http"
)

// registerWebhookRoutes mounts the provider callbacks; they authenticate
// with signatures instead of sessions
func registerWebhookRoutes(opts RouteRegistrationOpts) {
	app := opts.App

	v1 := opts.Router.PathPrefix("/v1/webhooks").Subrouter()
	v1.Handle("/stripe", app.stripe).Methods(http.MethodPost)
	v1.Handle("/whatsapp", app.whatsapp).Methods(http.MethodGet, http.MethodPost)
}
