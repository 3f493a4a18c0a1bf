package controller

import (
	"net/http"

	"madrasah/internal/common"

	"github.com/gorilla/mux"
)

type RouteRegistrationOpts struct {
	App         *application
	Router      *mux.Router
	ServiceLogs chan<- common.ServiceLog

	// Limits are the rate limiting middlewares keyed by scope
	Limits map[string]func(http.Handler) http.Handler
}

// limited wraps handler with the limiter of the scope when one exists
func (o RouteRegistrationOpts) limited(scope string, handler http.Handler) http.Handler {
	if limiter, ok := o.Limits[scope]; ok {
		return limiter(handler)
	}
	return handler
}
