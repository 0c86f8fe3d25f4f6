package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/danmuck/tcpapi/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startService(t *testing.T, cfg ServiceConfig, processor Processor) (*Service, string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	svc := NewService(cfg, processor, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx, ln)
	}()
	stop := func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("serve did not return after cancel")
		}
	}
	return svc, ln.Addr().String(), stop
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func writeInChunks(t *testing.T, conn net.Conn, raw string, n int) {
	t.Helper()
	for len(raw) > 0 {
		end := n
		if end > len(raw) {
			end = len(raw)
		}
		_, err := conn.Write([]byte(raw[:end]))
		require.NoError(t, err)
		raw = raw[end:]
	}
}

func TestServiceTwoConnectionsThreeByteChunks(t *testing.T) {
	testlog.Start(t)

	_, addr, stop := startService(t, DefaultServiceConfig(), &recordingProcessor{echo: true})
	defer stop()

	a := dial(t, addr)
	defer a.Close()
	b := dial(t, addr)
	defer b.Close()

	rawA := `{"url":"/o/ping"}`
	rawB := `{"url":"/i","body":{"device_id":"d1","app_key":"K"}}`
	for len(rawA) > 0 || len(rawB) > 0 {
		if len(rawA) > 0 {
			n := min(3, len(rawA))
			writeInChunks(t, a, rawA[:n], 3)
			rawA = rawA[n:]
		}
		if len(rawB) > 0 {
			n := min(3, len(rawB))
			writeInChunks(t, b, rawB[:n], 3)
			rawB = rawB[n:]
		}
	}

	var replyA, replyB echoReply
	require.NoError(t, json.NewDecoder(a).Decode(&replyA))
	require.NoError(t, json.NewDecoder(b).Decode(&replyB))

	assert.Equal(t, "/o/ping", replyA.Path)
	assert.Empty(t, replyA.Params)
	assert.Equal(t, "/i", replyB.Path)
	assert.Equal(t, map[string]any{"device_id": "d1", "app_key": "K"}, replyB.Params)
}

func TestServiceBodyOverridesQuery(t *testing.T) {
	testlog.Start(t)

	_, addr, stop := startService(t, DefaultServiceConfig(), &recordingProcessor{echo: true})
	defer stop()

	conn := dial(t, addr)
	defer conn.Close()
	writeInChunks(t, conn, `{"url":"/i?x=1","body":{"x":2}}`, 5)

	var reply echoReply
	require.NoError(t, json.NewDecoder(conn).Decode(&reply))
	assert.Equal(t, "/i", reply.Path)
	assert.Equal(t, map[string]any{"x": float64(2)}, reply.Params)
}

func TestServiceMalformedMessageKeepsConnection(t *testing.T) {
	testlog.Start(t)

	_, addr, stop := startService(t, DefaultServiceConfig(), &recordingProcessor{echo: true})
	defer stop()

	conn := dial(t, addr)
	defer conn.Close()
	writeInChunks(t, conn, `{"url":"/first"}{"url" ]]{"body":{}}{"url":"/second"}`, 7)

	dec := json.NewDecoder(conn)
	var first, second echoReply
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "/first", first.Path)
	assert.Equal(t, "/second", second.Path)
}

func TestServiceTracksConnections(t *testing.T) {
	testlog.Start(t)

	svc, addr, stop := startService(t, DefaultServiceConfig(), &recordingProcessor{echo: true})
	defer stop()

	conn := dial(t, addr)
	writeInChunks(t, conn, `{"url":"/o/ping"}`, 64)
	var reply echoReply
	require.NoError(t, json.NewDecoder(conn).Decode(&reply))

	require.Eventually(t, func() bool { return svc.ActiveConnections() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		snaps := svc.Connections()
		return len(snaps) == 1 && snaps[0].Messages == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "open", svc.Connections()[0].Liveness)
	assert.True(t, svc.Ready())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return svc.ActiveConnections() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, svc.Connections())
}

func TestServiceMaxConnections(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultServiceConfig()
	cfg.MaxConnections = 1
	svc, addr, stop := startService(t, cfg, &recordingProcessor{echo: true})
	defer stop()

	first := dial(t, addr)
	defer first.Close()
	writeInChunks(t, first, `{"url":"/o/ping"}`, 64)
	var reply echoReply
	require.NoError(t, json.NewDecoder(first).Decode(&reply))
	require.Equal(t, int64(1), svc.ActiveConnections())

	second := dial(t, addr)
	defer second.Close()
	_, err := second.Read(make([]byte, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.EOF) || isConnReset(err), "unexpected err: %v", err)
}

func TestServiceShutdownClosesConnections(t *testing.T) {
	testlog.Start(t)

	svc, addr, stop := startService(t, DefaultServiceConfig(), &recordingProcessor{})
	conn := dial(t, addr)
	defer conn.Close()
	require.Eventually(t, func() bool { return svc.ActiveConnections() == 1 }, 2*time.Second, 10*time.Millisecond)

	stop()
	_, err := conn.Read(make([]byte, 1))
	require.Error(t, err)
	assert.False(t, svc.Ready())
	assert.Zero(t, svc.ActiveConnections())
}

func isConnReset(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func TestServiceRunContextStopsOnCancel(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultServiceConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.AdminListenAddr = "127.0.0.1:0"
	svc := NewService(cfg, &recordingProcessor{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunContext(ctx) }()
	require.Eventually(t, svc.Ready, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestServiceRunContextFailsOnBadAdminAddr(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultServiceConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.AdminListenAddr = "127.0.0.1:not-a-port"
	svc := NewService(cfg, &recordingProcessor{}, nil)

	done := make(chan error, 1)
	go func() { done <- svc.RunContext(context.Background()) }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not fail on admin listen error")
	}
}
