package common

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type CommonHttpEndpointsOpts struct {
	Router          *mux.Router
	ServiceLogs     chan<- ServiceLog
	LivenessChecks  []func() error
	ReadinessChecks []func() error
}

func RegisterCommonHttpEndpoints(opts CommonHttpEndpointsOpts) {
	opts.Router.HandleFunc("/healthz", getLivenessProbeHandler(opts)).Methods(http.MethodGet)
	opts.Router.HandleFunc("/readyz", getReadinessProbeHandler(opts)).Methods(http.MethodGet)
	opts.Router.Handle("/metrics", promhttp.Handler())
}

type handleHealthcheckProbeOutput struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Status   string   `json:"status"`
}

func getLivenessProbeHandler(opts CommonHttpEndpointsOpts) http.HandlerFunc {
	return getProbeHandler(opts.LivenessChecks)
}

func getReadinessProbeHandler(opts CommonHttpEndpointsOpts) http.HandlerFunc {
	return getProbeHandler(opts.ReadinessChecks)
}

func getProbeHandler(checks []func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issues := []error{}
		for _, check := range checks {
			if err := check(); err != nil {
				issues = append(issues, err)
			}
		}
		if len(issues) > 0 {
			SendHttpFailResponse(w, r, http.StatusServiceUnavailable, "大丈夫じゃない", errors.Join(issues...))
			return
		}
		SendHttpSuccessResponse(w, r, http.StatusOK, "大丈夫", handleHealthcheckProbeOutput{Status: "ok"})
	}
}
