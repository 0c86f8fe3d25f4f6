package gateway

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/tcpapi/internal/observability"
	"github.com/rs/zerolog/log"
)

// Liveness is the connection state seen by the reply path.
type Liveness int32

const (
	LivenessOpen Liveness = iota
	LivenessClosedClean
	LivenessClosedError
)

func (l Liveness) String() string {
	switch l {
	case LivenessOpen:
		return "open"
	case LivenessClosedClean:
		return "closed-clean"
	case LivenessClosedError:
		return "closed-with-error"
	default:
		return "unknown"
	}
}

// ConnSink writes replies to one connection while it is open. Writes after
// close are dropped silently. Concurrent Send calls never interleave.
type ConnSink struct {
	connID       string
	conn         net.Conn
	writeTimeout time.Duration

	state atomic.Int32
	mu    sync.Mutex
}

func NewConnSink(connID string, conn net.Conn, writeTimeout time.Duration) *ConnSink {
	return &ConnSink{
		connID:       connID,
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (s *ConnSink) Liveness() Liveness {
	return Liveness(s.state.Load())
}

// Send writes payload if the connection is still open.
func (s *ConnSink) Send(payload []byte) {
	if s.Liveness() != LivenessOpen {
		observability.RecordSinkWrite(observability.SinkDropped)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Liveness() != LivenessOpen {
		observability.RecordSinkWrite(observability.SinkDropped)
		return
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if _, err := s.conn.Write(payload); err != nil {
		observability.RecordSinkWrite(observability.SinkFailed)
		if s.markClosed(LivenessClosedError) {
			log.Warn().
				Str("conn_id", s.connID).
				Err(err).
				Msg("gateway.ConnSink.Send write failed; closing connection")
		}
		_ = s.conn.Close()
		return
	}
	observability.RecordSinkWrite(observability.SinkWritten)
}

// markClosed moves the sink out of open. Only the first transition wins.
func (s *ConnSink) markClosed(to Liveness) bool {
	return s.state.CompareAndSwap(int32(LivenessOpen), int32(to))
}
