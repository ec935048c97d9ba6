package dynamodb

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"loom-backend/application/ports"
	pkgerrors "loom-backend/pkg/errors"
)

// transactMaxItems is the DynamoDB cap on items per TransactWriteItems call
const transactMaxItems = 100

// UnitOfWork accumulates transact write items and commits them in one
// TransactWriteItems call, so a failure applies nothing
type UnitOfWork struct {
	client *dynamodb.Client
	logger *zap.Logger

	mu    sync.Mutex
	items []types.TransactWriteItem
}

// register queues one transact item
func (u *UnitOfWork) register(item types.TransactWriteItem) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.items = append(u.items, item)
}

// Commit applies every registered write atomically
func (u *UnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.items) == 0 {
		return nil
	}
	if len(u.items) > transactMaxItems {
		return pkgerrors.NewValidationError("transaction exceeds the DynamoDB limit of 100 writes")
	}

	_, err := u.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: u.items,
	})
	if err != nil {
		u.logger.Error("transaction commit failed",
			zap.Int("items", len(u.items)),
			zap.Error(err))
		return pkgerrors.NewDatabaseError("commit transaction", err)
	}

	u.items = nil
	return nil
}

// Size returns the number of registered writes
func (u *UnitOfWork) Size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.items)
}

// UnitOfWorkFactory creates DynamoDB units of work
type UnitOfWorkFactory struct {
	client *dynamodb.Client
	logger *zap.Logger
}

// NewUnitOfWorkFactory creates the factory
func NewUnitOfWorkFactory(client *dynamodb.Client, logger *zap.Logger) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		client: client,
		logger: logger,
	}
}

// New creates a fresh unit of work
func (f *UnitOfWorkFactory) New() ports.UnitOfWork {
	return &UnitOfWork{
		client: f.client,
		logger: f.logger,
	}
}
