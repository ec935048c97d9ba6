package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/commands/bus"
	commandhandlers "loom-backend/application/commands/handlers"
	"loom-backend/application/ports"
	"loom-backend/application/queries"
	querybus "loom-backend/application/queries/bus"
	queryhandlers "loom-backend/application/queries/handlers"
	domainconfig "loom-backend/domain/config"
	"loom-backend/infrastructure/completion"
	"loom-backend/infrastructure/config"
	"loom-backend/infrastructure/messaging/eventbridge"
	"loom-backend/infrastructure/persistence/dynamodb"
	"loom-backend/interfaces/http/rest"
	"loom-backend/pkg/auth"
	"loom-backend/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideDomainConfig creates the domain configuration
func ProvideDomainConfig() *domainconfig.DomainConfig {
	return domainconfig.DefaultDomainConfig()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideMessageRepository creates a message repository
func ProvideMessageRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.MessageRepository {
	return dynamodb.NewMessageRepository(client, cfg.TableName, logger)
}

// ProvideConversationRepository creates a conversation repository
func ProvideConversationRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.ConversationRepository {
	return dynamodb.NewConversationRepository(client, cfg.TableName, logger)
}

// ProvideUnitOfWorkFactory creates the transactional write factory
func ProvideUnitOfWorkFactory(client *awsdynamodb.Client, logger *zap.Logger) ports.UnitOfWorkFactory {
	return dynamodb.NewUnitOfWorkFactory(client, logger)
}

// ProvideEventPublisher creates the domain event publisher
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideCompletionService creates the completion stream client
func ProvideCompletionService(cfg *config.Config, logger *zap.Logger) ports.CompletionService {
	return completion.NewClient(cfg.CompletionEndpoint, cfg.CompletionAPIKey, cfg.CompletionTimeout, logger)
}

// ProvideMetrics creates the metrics recorder. When metrics are disabled the
// recorder carries a nil client and every call is a no-op.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	namespace := fmt.Sprintf("LoomChat/%s", cfg.Environment)
	if !cfg.MetricsEnabled {
		return observability.NewMetrics(namespace, nil, logger)
	}
	return observability.NewMetrics(namespace, client, logger)
}

// ProvideTracer creates the tracer
func ProvideTracer() *observability.Tracer {
	return observability.NewTracer("loom-backend")
}

// ProvideJWTValidator creates the token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" && cfg.JWTSigningMethod == "HS256" && !cfg.IsProduction() {
		secret = "local-development-secret"
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: cfg.JWTSigningMethod,
		PublicKey:     cfg.JWTPublicKey,
		SecretKey:     secret,
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
	})
}

// ProvideCommandBus creates the command bus with every mutation handler
// registered behind the logging and metrics middleware
func ProvideCommandBus(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	uowFactory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	completions ports.CompletionService,
	domainCfg *domainconfig.DomainConfig,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	cfg *config.Config,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus()

	middlewares := []bus.Middleware{
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
	}
	if cfg.TracingEnabled {
		middlewares = append(middlewares, bus.TracingMiddleware(tracer))
	}
	pipeline := bus.NewPipeline(middlewares...)

	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.UpdateMessagePositionCommand{}, commandhandlers.NewUpdateMessagePositionHandler(messageRepo, conversationRepo, publisher, logger)},
		{commands.BatchUpdatePositionsCommand{}, commandhandlers.NewBatchUpdatePositionsHandler(messageRepo, conversationRepo, uowFactory, publisher, domainCfg, logger)},
		{commands.AttachMessageCommand{}, commandhandlers.NewAttachMessageHandler(messageRepo, conversationRepo, publisher, logger)},
		{commands.DropMessageCommand{}, commandhandlers.NewDropMessageHandler(messageRepo, conversationRepo, publisher, logger)},
		{commands.DuplicateMessageCommand{}, commandhandlers.NewDuplicateMessageHandler(messageRepo, conversationRepo, publisher, domainCfg, logger)},
		{commands.DeleteMessageCommand{}, commandhandlers.NewDeleteMessageHandler(messageRepo, conversationRepo, uowFactory, publisher, logger)},
		{commands.DeleteThreadCommand{}, commandhandlers.NewDeleteThreadHandler(messageRepo, conversationRepo, uowFactory, publisher, logger)},
		{commands.CreateMessageCommand{}, commandhandlers.NewCreateMessageHandler(messageRepo, conversationRepo, publisher, domainCfg, logger)},
		{commands.GenerateReplyCommand{}, commandhandlers.NewGenerateReplyHandler(messageRepo, conversationRepo, completions, publisher, domainCfg, logger)},
		{commands.CreateConversationCommand{}, commandhandlers.NewCreateConversationHandler(conversationRepo, publisher, logger)},
		{commands.RenameConversationCommand{}, commandhandlers.NewRenameConversationHandler(conversationRepo, logger)},
		{commands.DeleteConversationCommand{}, commandhandlers.NewDeleteConversationHandler(messageRepo, conversationRepo, uowFactory, publisher, logger)},
	}

	for _, reg := range registrations {
		if err := commandBus.Register(reg.cmd, pipeline.Execute(reg.handler)); err != nil {
			return nil, err
		}
	}

	return commandBus, nil
}

// ProvideQueryBus creates the query bus with every read handler registered
func ProvideQueryBus(
	messageRepo ports.MessageRepository,
	conversationRepo ports.ConversationRepository,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()
	logging := querybus.LoggingMiddleware(logger)

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.GetGraphQuery{}, queryhandlers.NewGetGraphHandler(messageRepo, conversationRepo, logger)},
		{queries.GetMessageQuery{}, queryhandlers.NewGetMessageHandler(messageRepo, conversationRepo, logger)},
		{queries.ListConversationsQuery{}, queryhandlers.NewListConversationsHandler(conversationRepo, logger)},
	}

	for _, reg := range registrations {
		if err := queryBus.Register(reg.query, logging(reg.handler)); err != nil {
			return nil, err
		}
	}

	return queryBus, nil
}

// ProvideRouter creates the configured HTTP handler
func ProvideRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	validator *auth.JWTValidator,
	cfg *config.Config,
	logger *zap.Logger,
) http.Handler {
	return rest.NewRouter(commandBus, queryBus, validator, cfg, logger).Setup()
}
