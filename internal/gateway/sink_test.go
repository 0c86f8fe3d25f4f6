package gateway

import (
	"errors"
	"sync"
	"testing"

	"github.com/danmuck/tcpapi/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnSinkWritesWhileOpen(t *testing.T) {
	testlog.Start(t)

	conn := newFakeConn()
	sink := NewConnSink("conn-1", conn, 0)
	sink.Send([]byte(`{"result":"a"}`))
	sink.Send([]byte(`{"result":"b"}`))

	out, writes := conn.output()
	assert.Equal(t, `{"result":"a"}{"result":"b"}`, out)
	assert.Equal(t, 2, writes)
	assert.Equal(t, LivenessOpen, sink.Liveness())
}

func TestConnSinkDropsAfterClose(t *testing.T) {
	testlog.Start(t)

	for _, final := range []Liveness{LivenessClosedClean, LivenessClosedError} {
		conn := newFakeConn()
		sink := NewConnSink("conn-1", conn, 0)
		require.True(t, sink.markClosed(final))
		require.False(t, sink.markClosed(LivenessClosedClean), "only the first transition wins")

		assert.NotPanics(t, func() { sink.Send([]byte("late")) })
		out, writes := conn.output()
		assert.Empty(t, out)
		assert.Zero(t, writes)
		assert.Equal(t, final, sink.Liveness())
	}
}

func TestConnSinkWriteFailureClosesWithError(t *testing.T) {
	testlog.Start(t)

	conn := newFakeConn()
	conn.writeErr = errors.New("broken pipe")
	sink := NewConnSink("conn-1", conn, 0)

	sink.Send([]byte("x"))
	assert.Equal(t, LivenessClosedError, sink.Liveness())
	assert.True(t, conn.isClosed())

	conn.writeErr = nil
	sink.Send([]byte("y"))
	_, writes := conn.output()
	assert.Zero(t, writes)
}

func TestConnSinkSerialisesConcurrentWrites(t *testing.T) {
	testlog.Start(t)

	conn := newFakeConn()
	sink := NewConnSink("conn-1", conn, 0)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Send([]byte("[0123456789]"))
		}()
	}
	wg.Wait()

	out, writes := conn.output()
	assert.Equal(t, 32, writes)
	assert.Len(t, out, 32*len("[0123456789]"))
}

func TestLivenessString(t *testing.T) {
	testlog.Start(t)

	assert.Equal(t, "open", LivenessOpen.String())
	assert.Equal(t, "closed-clean", LivenessClosedClean.String())
	assert.Equal(t, "closed-with-error", LivenessClosedError.String())
	assert.Equal(t, "unknown", Liveness(9).String())
}
