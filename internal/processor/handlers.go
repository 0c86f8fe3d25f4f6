package processor

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/danmuck/tcpapi/internal/plugins"
	"github.com/danmuck/tcpapi/internal/protocol/request"
	"github.com/danmuck/tcpapi/internal/store"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

const defaultRecent = 20

func (r *Router) db() *store.Store {
	if r.host == nil {
		return nil
	}
	return r.host.DB()
}

func (r *Router) handlePing(ctx context.Context, req *request.Context, _ httprouter.Params) {
	if db := r.db(); db != nil {
		if err := db.Ping(ctx); err != nil {
			log.Error().Err(err).Str("conn_id", req.ConnID).Msg("processor.ping store unavailable")
			sendResult(req, ResultError)
			return
		}
	}
	sendResult(req, ResultSuccess)
}

func (r *Router) handleIngest(ctx context.Context, req *request.Context, _ httprouter.Params) {
	appKey, okApp := req.Param("app_key")
	deviceID, okDevice := req.Param("device_id")
	if !okApp || !okDevice || appKey == "" || deviceID == "" {
		sendResult(req, ResultMissingIdentity)
		return
	}
	if r.host != nil && !r.host.AppExists(appKey) {
		sendResult(req, ResultUnknownApp)
		return
	}
	db := r.db()
	if db == nil {
		log.Error().Err(plugins.ErrNoStore).Str("conn_id", req.ConnID).Msg("processor.ingest rejected")
		sendResult(req, ResultError)
		return
	}

	params, err := json.Marshal(req.Params)
	if err != nil {
		sendResult(req, ResultError)
		return
	}
	id, err := db.RecordRequest(ctx, store.Record{
		AppKey:     appKey,
		DeviceID:   deviceID,
		Path:       req.Path,
		Params:     string(params),
		ConnID:     req.ConnID,
		ReceivedAt: req.ReceivedAt,
	})
	if err != nil {
		log.Error().Err(err).Str("conn_id", req.ConnID).Str("app_key", appKey).Msg("processor.ingest record failed")
		sendResult(req, ResultError)
		return
	}
	log.Debug().Int64("id", id).Str("app_key", appKey).Str("device_id", deviceID).Msg("processor.ingest recorded")
	sendResult(req, ResultSuccess)
}

func (r *Router) handleRecent(ctx context.Context, req *request.Context, _ httprouter.Params) {
	appKey, ok := req.Param("app_key")
	if !ok || appKey == "" {
		sendResult(req, ResultMissingAppKey)
		return
	}
	if r.host != nil && !r.host.AppExists(appKey) {
		sendResult(req, ResultUnknownApp)
		return
	}
	db := r.db()
	if db == nil {
		log.Error().Err(plugins.ErrNoStore).Str("conn_id", req.ConnID).Msg("processor.requests rejected")
		sendResult(req, ResultError)
		return
	}

	records, err := db.RecentRequests(ctx, appKey, r.recentLimit(req))
	if err != nil {
		log.Error().Err(err).Str("conn_id", req.ConnID).Msg("processor.requests query failed")
		sendResult(req, ResultError)
		return
	}
	views := make([]requestView, 0, len(records))
	for _, rec := range records {
		view := requestView{
			ID:         rec.ID,
			DeviceID:   rec.DeviceID,
			Path:       rec.Path,
			ConnID:     rec.ConnID,
			ReceivedMS: rec.ReceivedAt.UnixMilli(),
		}
		_ = json.Unmarshal([]byte(rec.Params), &view.Params)
		views = append(views, view)
	}
	send(req, reply{Result: ResultSuccess, Requests: views})
}

// recentLimit reads the limit param, defaulting to 20 and capped by the
// configured maximum.
func (r *Router) recentLimit(req *request.Context) int {
	ceiling := 100
	if r.host != nil && r.host.MaxRecent() > 0 {
		ceiling = r.host.MaxRecent()
	}
	limit := defaultRecent
	if raw, ok := req.Param("limit"); ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit
}
