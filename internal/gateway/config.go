package gateway

import (
	"strings"
	"time"

	"github.com/danmuck/tcpapi/internal/protocol/jsonstream"
)

// ServiceConfig configures the stream listener and its connections.
type ServiceConfig struct {
	ListenAddr      string
	AdminListenAddr string
	CorsOrigins     []string
	ReadBufferSize  int
	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables it.
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxConnections bounds concurrently open connections. Zero is unbounded.
	MaxConnections     int
	ForceConfigRefresh bool
	Limits             jsonstream.Limits
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:         "localhost:3005",
		AdminListenAddr:    "",
		ReadBufferSize:     32 * 1024,
		IdleTimeout:        0,
		WriteTimeout:       15 * time.Second,
		MaxConnections:     0,
		ForceConfigRefresh: true,
		Limits:             jsonstream.DefaultLimits(),
	}
}

// WithDefaults fills unset transport sizing from DefaultServiceConfig.
func (c ServiceConfig) WithDefaults() ServiceConfig {
	def := DefaultServiceConfig()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.IdleTimeout < 0 {
		c.IdleTimeout = 0
	}
	if c.MaxConnections < 0 {
		c.MaxConnections = 0
	}
	return c
}
