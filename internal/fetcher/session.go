package fetcher

import (
	"net"
	"net/http"
	"time"
)

// Session defaults.
const (
	DefaultTimeout             = 20 * time.Second
	DefaultMaxIdleConnsPerHost = 20
)

// SessionConfig tunes the shared HTTP client.
type SessionConfig struct {
	Timeout             time.Duration
	MaxIdleConnsPerHost int
}

// Session owns the connection-pooled HTTP client shared by every fetch task
// of a run. It is safe for concurrent use; Close releases idle connections.
type Session struct {
	client    *http.Client
	transport *http.Transport
}

// NewSession builds a Session with pooled keep-alive connections.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Session{
		client:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		transport: transport,
	}
}

// Client returns the shared client.
func (s *Session) Client() *http.Client {
	return s.client
}

// Close drops pooled connections. The session may still be used afterwards;
// new connections are dialed on demand.
func (s *Session) Close() {
	s.transport.CloseIdleConnections()
}
