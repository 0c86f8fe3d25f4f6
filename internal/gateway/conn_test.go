package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/danmuck/tcpapi/internal/protocol/request"
)

// fakeConn is an in-memory net.Conn that records writes and serves queued
// reads until it is closed.
type fakeConn struct {
	mu       sync.Mutex
	written  bytes.Buffer
	writes   int
	writeErr error
	closed   bool
	reads    chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan []byte, 64)}
}

func (c *fakeConn) Read(p []byte) (int, error) {
	chunk, ok := <-c.reads
	if !ok {
		return 0, io.EOF
	}
	return copy(p, chunk), nil
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes++
	return c.written.Write(p)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) output() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.String(), c.writes
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) LocalAddr() net.Addr                { return fakeAddr("local") }
func (c *fakeConn) RemoteAddr() net.Addr               { return fakeAddr("remote:1") }
func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// recordingProcessor keeps every request it sees and optionally echoes the
// path and params back through the sink.
type recordingProcessor struct {
	mu   sync.Mutex
	seen []*request.Context
	echo bool
}

func (p *recordingProcessor) Process(_ context.Context, req *request.Context) {
	p.mu.Lock()
	p.seen = append(p.seen, req)
	p.mu.Unlock()
	if !p.echo {
		return
	}
	payload, _ := json.Marshal(echoReply{Path: req.Path, Params: req.Params})
	req.Send(payload)
}

func (p *recordingProcessor) paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.seen))
	for _, req := range p.seen {
		out = append(out, req.Path)
	}
	return out
}

type echoReply struct {
	Path   string         `json:"path"`
	Params map[string]any `json:"params"`
}

type countingLoader struct {
	mu     sync.Mutex
	calls  int
	forced int
	err    error
}

func (l *countingLoader) EnsureConfigsLoaded(_ context.Context, force bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if force {
		l.forced++
	}
	return l.err
}

var errLoaderDown = errors.New("loader down")
