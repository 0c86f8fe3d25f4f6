package request

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// MethodTCP is the synthetic method carried by every stream request.
const MethodTCP = "tcp"

// Sink is the reply path for one request. Implementations decide whether the
// payload can still be delivered; Send never reports failure to the caller.
type Sink interface {
	Send(payload []byte)
}

// Binding carries the transport facts bound into a Context.
type Binding struct {
	ConnID     string
	RemoteAddr string
	Sink       Sink
}

// Context is the transport-agnostic request handed to the processor.
type Context struct {
	Method string
	// Href is the url exactly as received.
	Href     string
	Path     string
	Segments []string
	Query    url.Values
	// Params holds query parameters overlaid by body fields.
	Params map[string]any
	Body   map[string]any

	ConnID     string
	RemoteAddr string
	ReceivedAt time.Time

	Sink Sink
}

// Synthesize builds a request context from a decoded message. The url is
// split at the first '?' and the path is kept as sent: a leading "//" is
// not an authority and percent-escapes are not decoded.
func Synthesize(msg Message, b Binding) *Context {
	target := msg.URL
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}
	path, rawQuery, _ := strings.Cut(target, "?")

	// Malformed pairs are dropped; the well-formed remainder is kept.
	query, _ := url.ParseQuery(rawQuery)

	return &Context{
		Method:     MethodTCP,
		Href:       msg.URL,
		Path:       path,
		Segments:   strings.Split(path, "/"),
		Query:      query,
		Params:     mergeParams(query, msg.Body),
		Body:       msg.Body,
		ConnID:     b.ConnID,
		RemoteAddr: b.RemoteAddr,
		ReceivedAt: time.Now(),
		Sink:       b.Sink,
	}
}

func mergeParams(query url.Values, body map[string]any) map[string]any {
	params := make(map[string]any, len(query)+len(body))
	for key, vals := range query {
		if len(vals) == 1 {
			params[key] = vals[0]
			continue
		}
		list := make([]string, len(vals))
		copy(list, vals)
		params[key] = list
	}
	for key, val := range body {
		params[key] = val
	}
	return params
}

// Send writes payload through the bound sink, if any.
func (c *Context) Send(payload []byte) {
	if c == nil || c.Sink == nil {
		return
	}
	c.Sink.Send(payload)
}

// Param returns a parameter rendered as a string. Non-string scalars are
// formatted; objects and arrays report false.
func (c *Context) Param(key string) (string, bool) {
	v, ok := c.Params[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case float64, bool:
		return fmt.Sprint(val), true
	case []string:
		if len(val) == 0 {
			return "", false
		}
		return val[len(val)-1], true
	}
	return "", false
}
