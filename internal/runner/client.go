package runner

import (
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	dialTimeout     = 5 * time.Second
	keepAlive       = 30 * time.Second
	idleConnTimeout = 90 * time.Second
)

// NewClient builds the pooled client shared by every request of a run.
// Pool sizes follow the concurrency limit so connections get reused; they are
// not what bounds concurrency.
func NewClient(cfg Config) (*http.Client, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("%w: default transport is %T", ErrClientSetup, http.DefaultTransport)
	}
	t := base.Clone()
	t.MaxIdleConns = cfg.Concurrency
	t.MaxIdleConnsPerHost = cfg.Concurrency
	t.IdleConnTimeout = idleConnTimeout
	t.DialContext = (&net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: keepAlive,
	}).DialContext

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: t,
	}, nil
}
