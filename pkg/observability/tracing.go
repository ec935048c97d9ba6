package observability

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer names the X-Ray subsegments that wrap command execution. The
// service prefix keeps this backend's subsegments apart from other services
// in the same trace.
type Tracer struct {
	prefix string
}

// NewTracer creates a tracer for the given service name
func NewTracer(service string) *Tracer {
	return &Tracer{prefix: service}
}

// TraceFunction runs fn inside its own subsegment. An error returned by fn
// marks the subsegment as faulted and propagates unchanged.
func (t *Tracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	return xray.Capture(ctx, t.prefix+"."+name, fn)
}
