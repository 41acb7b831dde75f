package http

import (
	"fmt"
	"time"
)

// ClientConfig contains the connection pool and timeout settings of the
// client shared by every script fetch.
type ClientConfig struct {
	// Timeout bounds a whole request, body read included
	Timeout time.Duration

	// ConnectTimeout bounds dialing a new connection
	ConnectTimeout time.Duration

	// KeepAlive is the TCP keep-alive period of pooled connections
	KeepAlive time.Duration

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// UserAgent is sent when the script does not set one
	UserAgent string
}

// DefaultClientConfig returns the pool settings used by `surge run`.
func DefaultClientConfig(version string) ClientConfig {
	return ClientConfig{
		Timeout:             30 * time.Second,
		ConnectTimeout:      10 * time.Second,
		KeepAlive:           60 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     30 * time.Second,
		UserAgent:           fmt.Sprintf("surge/%s", version),
	}
}
