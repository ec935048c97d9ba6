package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moveCommand struct{}

func (moveCommand) Validate() error { return nil }

// recordingTracer captures subsegment names and delegates to the wrapped
// function
type recordingTracer struct {
	names []string
}

func (r *recordingTracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	r.names = append(r.names, name)
	return fn(ctx)
}

func TestTracingMiddleware_NamesSubsegmentAfterCommandType(t *testing.T) {
	tracer := &recordingTracer{}
	handled := false

	handler := TracingMiddleware(tracer)(CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
		handled = true
		return nil
	}))

	err := handler.Handle(context.Background(), moveCommand{})

	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []string{"moveCommand"}, tracer.names)
}

func TestTracingMiddleware_PropagatesHandlerErrorUnchanged(t *testing.T) {
	tracer := &recordingTracer{}
	failure := errors.New("repository unavailable")

	handler := TracingMiddleware(tracer)(CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
		return failure
	}))

	err := handler.Handle(context.Background(), moveCommand{})

	assert.ErrorIs(t, err, failure)
}

func TestPipeline_TracedCommandReachesHandlerThroughSend(t *testing.T) {
	tracer := &recordingTracer{}
	commandBus := NewCommandBus()
	pipeline := NewPipeline(TracingMiddleware(tracer))

	require.NoError(t, commandBus.Register(moveCommand{}, pipeline.Execute(
		CommandHandlerFunc(func(ctx context.Context, cmd Command) error { return nil }))))

	require.NoError(t, commandBus.Send(context.Background(), moveCommand{}))
	assert.Equal(t, []string{"moveCommand"}, tracer.names)
}
