package processor

import (
	"encoding/json"

	"github.com/danmuck/tcpapi/internal/protocol/request"
	"github.com/rs/zerolog/log"
)

const (
	ResultSuccess         = "Success"
	ResultInvalidPath     = "Invalid path"
	ResultMissingIdentity = `Missing parameter "app_key" or "device_id"`
	ResultMissingAppKey   = `Missing parameter "app_key"`
	ResultUnknownApp      = "App does not exist"
	ResultError           = "Error"
)

type reply struct {
	Result   string        `json:"result"`
	Requests []requestView `json:"requests,omitempty"`
}

type requestView struct {
	ID         int64          `json:"id"`
	DeviceID   string         `json:"device_id"`
	Path       string         `json:"path"`
	Params     map[string]any `json:"params,omitempty"`
	ConnID     string         `json:"conn_id,omitempty"`
	ReceivedMS int64          `json:"received_ms"`
}

func sendResult(req *request.Context, result string) {
	send(req, reply{Result: result})
}

func send(req *request.Context, body reply) {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Str("path", req.Path).Msg("processor.send encode failed")
		return
	}
	req.Send(payload)
}
