package plugins

import (
	"testing"

	"github.com/danmuck/tcpapi/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	testlog.Start(t)

	r := NewRegistry()
	r.Register(stubPlugin{name: "Requests", routes: []string{"/o/requests"}})
	r.Register(stubPlugin{name: "core"})

	p, ok := r.Get("requests")
	assert.True(t, ok)
	assert.Equal(t, "Requests", p.Name())
	assert.Equal(t, []string{"core", "requests"}, r.Names())

	all := r.All()
	delete(all, "core")
	_, ok = r.Get("core")
	assert.True(t, ok, "All returns a copy")
}
