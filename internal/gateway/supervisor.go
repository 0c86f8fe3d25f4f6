package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/danmuck/tcpapi/internal/observability"
	"github.com/danmuck/tcpapi/internal/protocol/jsonstream"
	"github.com/danmuck/tcpapi/internal/protocol/request"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConnectionInfo is a point-in-time view of one supervised connection.
type ConnectionInfo struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remote_addr"`
	Liveness   string    `json:"liveness"`
	OpenedAt   time.Time `json:"opened_at"`
	Messages   uint64    `json:"messages"`
	Rejected   uint64    `json:"rejected"`
}

// Supervisor owns one connection: it reads chunks, frames values, builds
// request contexts and hands them to the processor. Message-level failures
// never end the connection.
type Supervisor struct {
	id     string
	remote string
	cfg    ServiceConfig

	conn      net.Conn
	framer    *jsonstream.Framer
	sink      *ConnSink
	processor Processor
	configs   ConfigLoader
	logger    zerolog.Logger

	openedAt   time.Time
	dispatched atomic.Uint64
	rejected   atomic.Uint64
}

func NewSupervisor(conn net.Conn, cfg ServiceConfig, processor Processor, configs ConfigLoader) *Supervisor {
	cfg = cfg.WithDefaults()
	id := uuid.NewString()
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return &Supervisor{
		id:        id,
		remote:    remote,
		cfg:       cfg,
		conn:      conn,
		framer:    jsonstream.NewFramer(cfg.Limits),
		sink:      NewConnSink(id, conn, cfg.WriteTimeout),
		processor: processor,
		configs:   configs,
		logger:    log.With().Str("conn_id", id).Str("remote", remote).Logger(),
		openedAt:  time.Now(),
	}
}

func (s *Supervisor) ID() string {
	return s.id
}

// Run reads until the connection ends and returns its final liveness.
// ctx is handed to the processor; cancelling it does not interrupt reads,
// the owner closes the connection for that.
func (s *Supervisor) Run(ctx context.Context) Liveness {
	s.logger.Debug().Msg("gateway.Supervisor.Run connection opened")
	buf := make([]byte, s.cfg.ReadBufferSize)
	final := LivenessClosedClean

	for {
		if s.cfg.IdleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.HandleChunk(ctx, buf[:n])
		}
		if err != nil {
			final = classifyReadError(err)
			if final == LivenessClosedError {
				s.logger.Warn().Err(err).Msg("gateway.Supervisor.Run read failed")
			}
			break
		}
		if s.sink.Liveness() != LivenessOpen {
			// A failed reply write already ended the connection.
			final = s.sink.Liveness()
			break
		}
	}

	s.terminate(final)
	return s.sink.Liveness()
}

// HandleChunk feeds one chunk and dispatches every value it completes, in
// stream order.
func (s *Supervisor) HandleChunk(ctx context.Context, chunk []byte) {
	for _, ev := range s.framer.Feed(chunk) {
		s.handleEvent(ctx, ev)
	}
}

func (s *Supervisor) handleEvent(ctx context.Context, ev jsonstream.Event) {
	if ev.Err != nil {
		s.rejected.Add(1)
		observability.RecordMessage(observability.OutcomeFramingError)
		s.logger.Warn().Err(ev.Err).Msg("gateway.Supervisor framing error; value discarded")
		return
	}
	s.dispatch(ctx, ev.Value)
}

func (s *Supervisor) dispatch(ctx context.Context, raw json.RawMessage) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.rejected.Add(1)
			observability.RecordMessage(observability.OutcomePanic)
			s.logger.Error().Interface("panic", r).Msg("gateway.Supervisor.dispatch processor panic recovered")
		}
	}()

	if s.configs != nil {
		if err := s.configs.EnsureConfigsLoaded(ctx, s.cfg.ForceConfigRefresh); err != nil {
			observability.RecordConfigRefreshError()
			s.logger.Warn().Err(err).Msg("gateway.Supervisor.dispatch config refresh failed; using last good config")
		}
	}

	msg, err := request.Decode(raw)
	if err != nil {
		s.reject(err)
		return
	}
	req := request.Synthesize(msg, request.Binding{
		ConnID:     s.id,
		RemoteAddr: s.remote,
		Sink:       s.sink,
	})

	s.processor.Process(ctx, req)
	s.dispatched.Add(1)
	observability.RecordDispatch(time.Since(started))
}

func (s *Supervisor) reject(err error) {
	s.rejected.Add(1)
	observability.RecordMessage(observability.OutcomeValidationError)
	s.logger.Warn().Err(err).Msg("gateway.Supervisor.dispatch message rejected")
}

// terminate releases the connection. The sink is closed before the framer
// is flushed so that nothing dispatched from here on can write.
func (s *Supervisor) terminate(final Liveness) {
	s.sink.markClosed(final)
	for _, ev := range s.framer.Flush() {
		if ev.Err != nil {
			s.rejected.Add(1)
			observability.RecordMessage(observability.OutcomeFramingError)
			s.logger.Debug().Err(ev.Err).Msg("gateway.Supervisor.terminate partial value discarded")
		}
	}
	_ = s.conn.Close()
	observability.RecordConnectionClosed(s.sink.Liveness().String())
	s.logger.Debug().
		Str("liveness", s.sink.Liveness().String()).
		Uint64("messages", s.dispatched.Load()).
		Uint64("rejected", s.rejected.Load()).
		Msg("gateway.Supervisor.Run connection closed")
}

func (s *Supervisor) Snapshot() ConnectionInfo {
	return ConnectionInfo{
		ID:         s.id,
		RemoteAddr: s.remote,
		Liveness:   s.sink.Liveness().String(),
		OpenedAt:   s.openedAt,
		Messages:   s.dispatched.Load(),
		Rejected:   s.rejected.Load(),
	}
}

func classifyReadError(err error) Liveness {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return LivenessClosedClean
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		// Idle timeout is a policy close, not a transport failure.
		return LivenessClosedClean
	}
	return LivenessClosedError
}
