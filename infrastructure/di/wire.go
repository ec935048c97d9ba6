//go:build wireinject
// +build wireinject

// Package di wires the application together using Google Wire.
package di

import (
	"context"
	"net/http"

	"github.com/google/wire"
	"go.uber.org/zap"

	"loom-backend/application/commands/bus"
	querybus "loom-backend/application/queries/bus"
	domainconfig "loom-backend/domain/config"
	"loom-backend/infrastructure/config"
	"loom-backend/pkg/auth"
	"loom-backend/pkg/observability"
)

// Container holds the fully wired application
type Container struct {
	Config       *config.Config
	DomainConfig *domainconfig.DomainConfig
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Tracer       *observability.Tracer
	JWTValidator *auth.JWTValidator
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
	Router       http.Handler
}

// SuperSet is the complete provider set for the service
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideMessageRepository,
	ProvideConversationRepository,
	ProvideUnitOfWorkFactory,
	ProvideEventPublisher,
	ProvideCompletionService,
	ProvideMetrics,
	ProvideTracer,
	ProvideJWTValidator,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer builds the application container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
