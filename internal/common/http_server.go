package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type HttpServer struct {
	Done        chan Done
	Server      http.Server
	ServiceLogs chan<- ServiceLog
}

// Start blocks until the server stops; sending on Done shuts it down
// gracefully
func (s *HttpServer) Start() error {
	s.ServiceLogs <- ServiceLogf(LogLevelInfo, "starting http server on %s...", s.Server.Addr)
	go func() {
		<-s.Done
		ctx, cancel := context.WithTimeout(context.Background(), DefaultDurationShutdownTimeout)
		defer cancel()
		if err := s.Server.Shutdown(ctx); err != nil {
			s.ServiceLogs <- ServiceLogf(LogLevelError, "server shutdown: %s", err)
		}
	}()

	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

type NewHttpServerOpts struct {
	Addr        string
	Done        chan Done
	IpAllowlist *NewHttpServerIpAllowlistOpts
	Handler     http.Handler

	// TrustedProxies are the cidrs whose X-Forwarded-For entries are
	// believed; every other peer is taken as the client
	TrustedProxies []string
	ServiceLogs chan<- ServiceLog
}

type NewHttpServerIpAllowlistOpts struct {
	AllowedIps []string
}

func NewHttpServer(opts NewHttpServerOpts) (*HttpServer, error) {
	logger := GetRequestLoggerMiddleware(opts.ServiceLogs)
	recovery := GetRecoveryMiddleware(opts.ServiceLogs)
	metrics := GetCommonMetricsMiddleware(opts.ServiceLogs)

	handler := metrics(opts.Handler)

	if opts.IpAllowlist != nil && len(opts.IpAllowlist.AllowedIps) > 0 {
		cidrs, warnings, err := ParseCidrs(opts.IpAllowlist.AllowedIps)
		if err != nil {
			return nil, fmt.Errorf("failed to parse provided cidrs['%s']: %w", strings.Join(opts.IpAllowlist.AllowedIps, "', '"), err)
		}
		for warningIndex, warning := range warnings {
			opts.ServiceLogs <- ServiceLogf(LogLevelWarn, "received warning[%v] while parsing cidrs: %s", warningIndex, warning)
		}
		ipAllowLister := GetIpAllowlistMiddleware(opts.ServiceLogs, cidrs)
		handler = ipAllowLister(handler)
	}

	var trustedProxies []*net.IPNet
	if len(opts.TrustedProxies) > 0 {
		cidrs, warnings, err := ParseCidrs(opts.TrustedProxies)
		if err != nil {
			return nil, fmt.Errorf("failed to parse trusted proxies['%s']: %w", strings.Join(opts.TrustedProxies, "', '"), err)
		}
		for warningIndex, warning := range warnings {
			opts.ServiceLogs <- ServiceLogf(LogLevelWarn, "received warning[%v] while parsing trusted proxies: %s", warningIndex, warning)
		}
		trustedProxies = cidrs
	}
	clientIp := GetClientIpMiddleware(trustedProxies)

	handler = clientIp(logger(recovery(handler)))

	return &HttpServer{
		Done: opts.Done,
		Server: http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			IdleTimeout:       DefaultDurationConnectionTimeout,
			ReadTimeout:       DefaultDurationConnectionTimeout,
			ReadHeaderTimeout: DefaultDurationConnectionTimeout,
			WriteTimeout:      DefaultDurationConnectionTimeout,
		},
		ServiceLogs: opts.ServiceLogs,
	}, nil
}
