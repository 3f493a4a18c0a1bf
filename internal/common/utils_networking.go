package common

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ParseCidrs parses and validates CIDRs; invalid entries are skipped and
// reported as warnings
func ParseCidrs(cidrs []string) (validCidrs []*net.IPNet, warnings []string, err error) {
	for _, cidr := range cidrs {
		if !strings.Contains(cidr, "/") {
			cidr = cidr + "/32"
		}
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("provided cidr[%s] is invalid, it was skipped", cidr))
			continue
		}
		validCidrs = append(validCidrs, network)
	}
	if len(cidrs) > 0 && len(validCidrs) == 0 {
		return nil, warnings, errors.New("no valid cidrs")
	}
	return validCidrs, warnings, nil
}

type clientIpContextKey struct{}

// ClientIp returns the caller's address as resolved by the client ip
// middleware; without it only the direct peer is trusted
func ClientIp(r *http.Request) string {
	ip, err := requestIp(r)
	if err != nil {
		return r.RemoteAddr
	}
	return ip.String()
}

func requestIp(r *http.Request) (net.IP, error) {
	if ip, ok := r.Context().Value(clientIpContextKey{}).(net.IP); ok {
		return ip, nil
	}
	return resolveClientIp(r, nil)
}

// resolveClientIp returns the direct peer unless it is a trusted proxy,
// in which case X-Forwarded-For is walked from the right and the first
// hop outside trustedProxies is the client
func resolveClientIp(r *http.Request, trustedProxies []*net.IPNet) (net.IP, error) {
	remoteIp, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return nil, err
	}
	client := net.ParseIP(remoteIp)
	if client == nil {
		return nil, errors.New("invalid remote ip")
	}
	if !isIpAllowed(client, trustedProxies) {
		return client, nil
	}
	var hops []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(header, ",")...)
	}
	for i := len(hops) - 1; i >= 0; i-- {
		hop := net.ParseIP(strings.TrimSpace(hops[i]))
		if hop == nil {
			break
		}
		client = hop
		if !isIpAllowed(hop, trustedProxies) {
			break
		}
	}
	return client, nil
}

// isIpAllowed checks if the IP is inside any of the allowed CIDRs
func isIpAllowed(ip net.IP, cidrs []*net.IPNet) bool {
	for _, cidr := range cidrs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
