package gateway

import (
	"context"
	"errors"
	"net"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/tcpapi/internal/observability"
	"github.com/danmuck/tcpapi/internal/protocol/request"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Service is the stream listener. It spawns one Supervisor per accepted
// connection and tracks them for shutdown and snapshots.
type Service struct {
	cfg       ServiceConfig
	processor Processor
	configs   ConfigLoader

	connsMu sync.Mutex
	conns   map[*Supervisor]struct{}
	wg      sync.WaitGroup

	active    atomic.Int64
	ready     atomic.Bool
	startedAt time.Time
}

// NewService builds a listener with explicit collaborators. configs may be nil.
func NewService(cfg ServiceConfig, processor Processor, configs ConfigLoader) *Service {
	if processor == nil {
		processor = ProcessorFunc(func(context.Context, *request.Context) {})
	}
	return &Service{
		cfg:       cfg.WithDefaults(),
		processor: processor,
		configs:   configs,
		conns:     make(map[*Supervisor]struct{}),
		startedAt: time.Now(),
	}
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Run listens on the configured address and blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext listens on the configured address and blocks until ctx ends.
// A failing admin surface stops the listener too.
func (s *Service) RunContext(ctx context.Context) error {
	observability.RegisterMetrics()
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("gateway.Service.Run listening")

	g, gctx := errgroup.WithContext(ctx)
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		g.Go(func() error {
			return s.serveAdmin(gctx, addr)
		})
	}
	g.Go(func() error {
		return s.Serve(gctx, ln)
	})
	return g.Wait()
}

// Serve runs the accept loop on an existing listener. It returns nil once
// ctx is cancelled, after every connection has been closed.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer s.wg.Wait()
	defer ln.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		s.ready.Store(false)
		_ = ln.Close()
		s.closeAllConns()
	}()

	s.ready.Store(true)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if limit := s.cfg.MaxConnections; limit > 0 && s.active.Load() >= int64(limit) {
			observability.RecordConnectionAdmitted(false)
			log.Warn().
				Str("remote", conn.RemoteAddr().String()).
				Int("max_connections", limit).
				Msg("gateway.Service.Serve connection limit reached; closing")
			_ = conn.Close()
			continue
		}
		observability.RecordConnectionAdmitted(true)
		sup := NewSupervisor(conn, s.cfg, s.processor, s.configs)
		s.trackConn(sup)
		s.wg.Add(1)
		go s.handleConn(ctx, sup)
	}
}

func (s *Service) handleConn(ctx context.Context, sup *Supervisor) {
	defer s.wg.Done()
	defer s.untrackConn(sup)
	active := s.active.Load()
	log.Info().
		Str("conn_id", sup.ID()).
		Str("remote", sup.remote).
		Int64("active_clients", active).
		Msg("gateway.Service client connected")
	final := sup.Run(ctx)
	log.Info().
		Str("conn_id", sup.ID()).
		Str("liveness", final.String()).
		Msg("gateway.Service client disconnected")
}

func (s *Service) trackConn(sup *Supervisor) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[sup] = struct{}{}
	s.active.Add(1)
}

func (s *Service) untrackConn(sup *Supervisor) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if _, ok := s.conns[sup]; ok {
		delete(s.conns, sup)
		s.active.Add(-1)
	}
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for sup := range s.conns {
		_ = sup.conn.Close()
	}
}

// ActiveConnections returns the number of tracked connections.
func (s *Service) ActiveConnections() int64 {
	return s.active.Load()
}

// Ready reports whether the accept loop is running.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// Connections returns a snapshot of tracked connections, oldest first.
func (s *Service) Connections() []ConnectionInfo {
	s.connsMu.Lock()
	out := make([]ConnectionInfo, 0, len(s.conns))
	for sup := range s.conns {
		out = append(out, sup.Snapshot())
	}
	s.connsMu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}
