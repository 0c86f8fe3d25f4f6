package request

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Message is one decoded stream value with the recognised top-level fields.
type Message struct {
	URL string
	// Body is nil unless the value carried an object body.
	Body map[string]any
	Raw  json.RawMessage
}

// Decode validates the shape of one framed value. The raw bytes must already
// be well-formed JSON.
func Decode(raw json.RawMessage) (Message, error) {
	root := gjson.ParseBytes(raw)
	if isFalsy(root) {
		return Message{}, ErrEmptyMessage
	}
	if !root.IsObject() {
		return Message{}, fmt.Errorf("%w (type=%s)", ErrNotObject, root.Type)
	}

	// A repeated key keeps its last value.
	var u, body gjson.Result
	root.ForEach(func(key, value gjson.Result) bool {
		switch key.Str {
		case "url":
			u = value
		case "body":
			body = value
		}
		return true
	})
	if !u.Exists() {
		return Message{}, ErrMissingURL
	}
	if u.Type != gjson.String {
		return Message{}, fmt.Errorf("%w: url must be a string (type=%s)", ErrInvalidURL, u.Type)
	}

	msg := Message{URL: u.String(), Raw: raw}
	if body.IsObject() {
		if m, ok := body.Value().(map[string]any); ok {
			msg.Body = m
		}
	}
	return msg, nil
}

func isFalsy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return true
	case gjson.Number:
		return v.Num == 0
	case gjson.String:
		return v.Str == ""
	}
	return false
}
