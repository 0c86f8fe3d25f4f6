package gateway

import (
	"context"

	"github.com/danmuck/tcpapi/internal/protocol/request"
)

// Processor is the transport-agnostic request pipeline. It replies through
// req.Sink at most once and reports its own failures there.
type Processor interface {
	Process(ctx context.Context, req *request.Context)
}

type ProcessorFunc func(ctx context.Context, req *request.Context)

func (f ProcessorFunc) Process(ctx context.Context, req *request.Context) {
	f(ctx, req)
}

// ConfigLoader refreshes shared configuration before each dispatch. It must
// be safe for concurrent use by every connection.
type ConfigLoader interface {
	EnsureConfigsLoaded(ctx context.Context, force bool) error
}

// StatusReporter is implemented by collaborators that expose a status view
// on the admin surface.
type StatusReporter interface {
	Status() any
}
