package processor

import (
	"context"
	"net/http"
	"strings"

	"github.com/danmuck/tcpapi/internal/plugins"
	"github.com/danmuck/tcpapi/internal/protocol/request"
	"github.com/danmuck/tcpapi/internal/store"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

// Plugin names for the built-in routes.
const (
	PluginCore     = "core"
	PluginIngest   = "ingest"
	PluginRequests = "requests"
)

// Host is the shared state handlers read: plugin switches, apps and the store.
type Host interface {
	PluginEnabled(name string) bool
	AppExists(key string) bool
	MaxRecent() int
	DB() *store.Store
}

// Registrar receives the route groups, typically a plugins.Manager.
type Registrar interface {
	Register(p plugins.Plugin)
}

// HandlerFunc serves one request. ps carries named path segments.
type HandlerFunc func(ctx context.Context, req *request.Context, ps httprouter.Params)

// Plugin is a named group of routes.
type Plugin struct {
	name   string
	routes []string
}

func (p *Plugin) Name() string     { return p.name }
func (p *Plugin) Routes() []string { return append([]string(nil), p.routes...) }

var _ plugins.Plugin = (*Plugin)(nil)

type requestKey struct{}

// Router dispatches request contexts by path.
type Router struct {
	host    Host
	router  *httprouter.Router
	plugins map[string]*Plugin
	order   []*Plugin
}

// NewRouter builds a router with the built-in routes registered.
func NewRouter(host Host) *Router {
	r := &Router{
		host:    host,
		router:  httprouter.New(),
		plugins: make(map[string]*Plugin),
	}
	r.Handle(PluginCore, "/o/ping", r.handlePing)
	r.Handle(PluginIngest, "/i", r.handleIngest)
	r.Handle(PluginRequests, "/o/requests", r.handleRecent)
	return r
}

// Handle adds a route owned by plugin.
func (r *Router) Handle(plugin, path string, fn HandlerFunc) {
	plugin = strings.ToLower(strings.TrimSpace(plugin))
	p, ok := r.plugins[plugin]
	if !ok {
		p = &Plugin{name: plugin}
		r.plugins[plugin] = p
		r.order = append(r.order, p)
	}
	p.routes = append(p.routes, path)
	r.router.Handle(http.MethodGet, path, r.wrap(plugin, fn))
}

// Plugins returns the route groups in registration order.
func (r *Router) Plugins() []*Plugin {
	return append([]*Plugin(nil), r.order...)
}

// RegisterPlugins hands every route group to reg.
func (r *Router) RegisterPlugins(reg Registrar) {
	for _, p := range r.order {
		reg.Register(p)
	}
}

func (r *Router) wrap(plugin string, fn HandlerFunc) httprouter.Handle {
	return func(_ http.ResponseWriter, hr *http.Request, ps httprouter.Params) {
		req := hr.Context().Value(requestKey{}).(*request.Context)
		if r.host != nil && !r.host.PluginEnabled(plugin) {
			sendResult(req, ResultInvalidPath)
			return
		}
		fn(hr.Context(), req, ps)
	}
}

// Process routes one request and replies through its sink.
func (r *Router) Process(ctx context.Context, req *request.Context) {
	if !strings.HasPrefix(req.Path, "/") {
		sendResult(req, ResultInvalidPath)
		return
	}
	handle, ps, _ := r.router.Lookup(http.MethodGet, req.Path)
	if handle == nil {
		log.Debug().Str("conn_id", req.ConnID).Str("path", req.Path).Msg("processor.Router.Process no route")
		sendResult(req, ResultInvalidPath)
		return
	}
	hr := (&http.Request{Method: http.MethodGet}).WithContext(context.WithValue(ctx, requestKey{}, req))
	handle(nil, hr, ps)
}
