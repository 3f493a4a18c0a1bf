package controller

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"madrasah/internal/audit"
	"madrasah/internal/auth"
	"madrasah/internal/billing"
	"madrasah/internal/cache"
	"madrasah/internal/calendar"
	"madrasah/internal/claims"
	"madrasah/internal/common"
	"madrasah/internal/giftaid"
	"madrasah/internal/lifecycle"
	"madrasah/internal/notify"
	"madrasah/internal/ratelimit"
	"madrasah/internal/roster"
	"madrasah/internal/store"
	"madrasah/internal/webhooks"

	"github.com/gorilla/mux"
)

type HttpApplicationOpts struct {
	// Store is the persistence layer every handler reads and writes through
	Store store.Store

	// Cache holds sessions, rate limit counters and webhook replay markers
	Cache cache.Cache

	// Audit receives the audit trail, defaults to the store
	Audit audit.Logger

	// Notifier delivers emails to members and alerts to platform owners
	Notifier notify.Notifier

	// Lifecycle configures the organisation lifecycle thresholds
	Lifecycle lifecycle.Config

	// ClaimCodeTtl is how long a generated claim code stays valid
	ClaimCodeTtl time.Duration

	// LivenessChecks are sequentially executed when the liveness probe endpoint is hit
	LivenessChecks []func() error

	// ReadinessChecks are sequentially executed when the readiness probe endpoint is hit
	ReadinessChecks []func() error

	// PublicServerUrl is used to build links that are shown to parents,
	// such as the claim url encoded in claim QR codes
	PublicServerUrl string

	// RateLimit configures the public endpoint limiters
	RateLimit RateLimitOpts

	// SecureCookies marks the session cookie as Secure
	SecureCookies bool

	// ServiceLogs is a centralised channel where logs get sent to
	ServiceLogs chan<- common.ServiceLog

	// SessionSigningToken signs session tokens, change this to invalidate
	// all sessions with immediate effect
	SessionSigningToken string

	// SessionTtl is the lifetime of a session
	SessionTtl time.Duration

	// StripeWebhookSecret verifies Stripe-Signature headers
	StripeWebhookSecret string

	// WhatsappVerifyToken answers the WhatsApp subscription challenge
	WhatsappVerifyToken string

	// WhatsappAppSecret verifies X-Hub-Signature-256 headers
	WhatsappAppSecret string
}

type RateLimitOpts struct {
	// Limit is the number of requests a client ip may make per window
	// on each limited endpoint group
	Limit  int64
	Window time.Duration
}

func (o HttpApplicationOpts) Validate() error {
	errs := []error{}
	if o.Store == nil {
		errs = append(errs, fmt.Errorf("failed to receive a store: %w", ErrorMissingStore))
	}
	if o.Cache == nil {
		errs = append(errs, fmt.Errorf("failed to receive a cache: %w", ErrorMissingCache))
	}
	if o.Notifier == nil {
		errs = append(errs, fmt.Errorf("failed to receive a notifier: %w", ErrorMissingNotifier))
	}
	if o.ServiceLogs == nil {
		errs = append(errs, fmt.Errorf("failed to receive a service log: %w", ErrorMissingServiceLog))
	}
	if o.SessionSigningToken == "" {
		errs = append(errs, fmt.Errorf("failed to receive a session signing token: %w", ErrorMissingSigningToken))
	}
	if o.Lifecycle != (lifecycle.Config{}) {
		if err := o.Lifecycle.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// application carries the services that route handlers use
type application struct {
	store       store.Store
	cache       cache.Cache
	audit       audit.Logger
	notifier    notify.Notifier
	sessions    *auth.Sessions
	billing     *billing.Service
	lifecycle   *lifecycle.Manager
	claims      *claims.Service
	giftaid     *giftaid.Exporter
	calendar    *calendar.Builder
	roster      *roster.Importer
	stripe      *webhooks.StripeHandler
	whatsapp    *webhooks.WhatsappHandler
	publicUrl   *url.URL
	secure      bool
	serviceLogs chan<- common.ServiceLog
}

func newApplication(opts HttpApplicationOpts) (*application, error) {
	publicUrl, err := url.Parse(opts.PublicServerUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server url '%s': %w: %w", opts.PublicServerUrl, ErrorInvalidPublicServerUrl, err)
	}
	auditLogger := opts.Audit
	if auditLogger == nil {
		auditLogger = &audit.StoreLogger{Store: opts.Store}
	}
	app := &application{
		store:       opts.Store,
		cache:       opts.Cache,
		audit:       auditLogger,
		notifier:    opts.Notifier,
		publicUrl:   publicUrl,
		secure:      opts.SecureCookies,
		serviceLogs: opts.ServiceLogs,
		sessions: &auth.Sessions{
			Cache:  opts.Cache,
			Secret: opts.SessionSigningToken,
			Ttl:    opts.SessionTtl,
		},
	}
	app.billing = &billing.Service{Store: opts.Store, Audit: auditLogger, ServiceLogs: opts.ServiceLogs}
	app.lifecycle = &lifecycle.Manager{
		Store:       opts.Store,
		Audit:       auditLogger,
		Notifier:    opts.Notifier,
		Config:      opts.Lifecycle,
		ServiceLogs: opts.ServiceLogs,
	}
	app.claims = &claims.Service{
		Store:       opts.Store,
		Audit:       auditLogger,
		Notifier:    opts.Notifier,
		Ttl:         opts.ClaimCodeTtl,
		ServiceLogs: opts.ServiceLogs,
	}
	app.giftaid = &giftaid.Exporter{Store: opts.Store, ServiceLogs: opts.ServiceLogs}
	app.calendar = &calendar.Builder{Store: opts.Store, ServiceLogs: opts.ServiceLogs}
	app.roster = &roster.Importer{Store: opts.Store, Audit: auditLogger, ServiceLogs: opts.ServiceLogs}
	app.stripe = &webhooks.StripeHandler{
		Store:       opts.Store,
		Lifecycle:   app.lifecycle,
		Billing:     app.billing,
		Cache:       opts.Cache,
		Secret:      opts.StripeWebhookSecret,
		ServiceLogs: opts.ServiceLogs,
	}
	app.whatsapp = &webhooks.WhatsappHandler{
		VerifyToken: opts.WhatsappVerifyToken,
		AppSecret:   opts.WhatsappAppSecret,
		ServiceLogs: opts.ServiceLogs,
	}
	return app, nil
}

func (a *application) limiter(scope string, opts RateLimitOpts) func(http.Handler) http.Handler {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	window := opts.Window
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	limiter := &ratelimit.Limiter{
		Cache:       a.cache,
		Scope:       scope,
		Limit:       limit,
		Window:      window,
		ServiceLogs: a.serviceLogs,
	}
	return limiter.Middleware
}

// GetHttpApplication returns the router of the controller service with
// every API route, the webhooks and the probe endpoints registered
func GetHttpApplication(opts HttpApplicationOpts) (http.Handler, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("failed to initialise http application: %w", err)
	}
	app, err := newApplication(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise http application: %w", err)
	}
	if opts.StripeWebhookSecret == "" {
		opts.ServiceLogs <- common.ServiceLogf(common.LogLevelWarn, "stripe webhook secret is not set, stripe events will be rejected")
	}

	handler := mux.NewRouter()
	handler.NotFoundHandler = common.GetNotFoundHandler()
	common.RegisterCommonHttpEndpoints(common.CommonHttpEndpointsOpts{
		Router:          handler,
		ServiceLogs:     opts.ServiceLogs,
		LivenessChecks:  opts.LivenessChecks,
		ReadinessChecks: opts.ReadinessChecks,
	})

	api := handler.PathPrefix("/api").Subrouter()
	routeOpts := RouteRegistrationOpts{
		App:         app,
		Router:      api,
		ServiceLogs: opts.ServiceLogs,
		Limits: map[string]func(http.Handler) http.Handler{
			rateLimitAuth:   app.limiter(rateLimitAuth, opts.RateLimit),
			rateLimitSignup: app.limiter(rateLimitSignup, opts.RateLimit),
			rateLimitClaims: app.limiter(rateLimitClaims, opts.RateLimit),
		},
	}

	registerAuditRoutes(routeOpts)
	registerClaimRoutes(routeOpts)
	registerClassRoutes(routeOpts)
	registerExportRoutes(routeOpts)
	registerMessageRoutes(routeOpts)
	registerOrgRoutes(routeOpts)
	registerOwnerRoutes(routeOpts)
	registerPaymentRoutes(routeOpts)
	registerSessionRoutes(routeOpts)
	registerStudentRoutes(routeOpts)
	registerUserRoutes(routeOpts)
	registerWebhookRoutes(routeOpts)

	if err := handler.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		opts.ServiceLogs <- common.ServiceLogf(common.LogLevelDebug, "registered route[%s] with methods[%s]", pathTemplate, strings.Join(methods, "|"))
		return nil
	}); err != nil {
		return nil, err
	}
	return handler, nil
}
