package netutil

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// NewDeviceTransport returns an HTTP transport tuned for polling a single
// device on the local network: a short dial timeout, few idle connections
// and keep-alives so a fast polling rate reuses one socket.
func NewDeviceTransport(dialTimeout time.Duration, logger *logrus.Logger) *http.Transport {
	return &http.Transport{
		Proxy:                 proxyFor(logger),
		DialContext:           createDialContext(dialTimeout, logger),
		TLSHandshakeTimeout:   5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   2,
	}
}

// NewDeviceClient creates an HTTP client using NewDeviceTransport. The
// client carries no overall timeout; callers bound each request with a
// context instead.
func NewDeviceClient(dialTimeout time.Duration, logger *logrus.Logger) *http.Client {
	return &http.Client{
		Transport: NewDeviceTransport(dialTimeout, logger),
	}
}

// proxyFor honours HTTP(S)_PROXY for remote hosts but always connects
// directly to local or private addresses.
func proxyFor(logger *logrus.Logger) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if IsLocalOrPrivateHost(req.URL.Hostname()) {
			return nil, nil
		}
		u, err := http.ProxyFromEnvironment(req)
		if u != nil {
			logger.WithField("proxy", u.Host).Debug("Using proxy for device endpoint")
		}
		return u, err
	}
}

func createDialContext(timeout time.Duration, logger *logrus.Logger) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		logger.WithFields(logrus.Fields{
			"host":  host,
			"local": IsLocalOrPrivateHost(host),
		}).Debug("Dialing device")

		dialer := net.Dialer{Timeout: timeout}
		return dialer.DialContext(ctx, network, addr)
	}
}

// IsLocalOrPrivateHost checks if a hostname is localhost, an mDNS/LAN name
// or a private network address
func IsLocalOrPrivateHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".lan") {
		return true
	}

	ip := net.ParseIP(strings.Trim(host, "[]"))
	if ip == nil {
		return false
	}
	return isPrivateIP(ip)
}

// isPrivateIP checks if an IP address is loopback, link-local or in a
// private range (RFC 1918 / RFC 4193)
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
