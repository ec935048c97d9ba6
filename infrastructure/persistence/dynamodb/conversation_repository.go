package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

const gsi1IndexName = "GSI1"

// conversationRecord is the DynamoDB shape of a conversation. Conversations
// key on their owner (PK=USER#id, SK=CONV#id) so listing a user's
// conversations is one query; GSI1 indexes them by conversation ID.
type conversationRecord struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	GSI1PK         string `dynamodbav:"GSI1PK"`
	GSI1SK         string `dynamodbav:"GSI1SK"`
	EntityType     string `dynamodbav:"EntityType"`
	ConversationID string `dynamodbav:"ConversationID"`
	UserID         string `dynamodbav:"UserID"`
	Title          string `dynamodbav:"Title"`
	CollectionID   string `dynamodbav:"CollectionID,omitempty"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	UpdatedAt      string `dynamodbav:"UpdatedAt"`
}

// ConversationRepository persists conversations in DynamoDB
type ConversationRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewConversationRepository creates the repository
func NewConversationRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *ConversationRepository {
	return &ConversationRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Save persists a conversation (create or full overwrite)
func (r *ConversationRepository) Save(ctx context.Context, conv *entities.Conversation) error {
	item, err := attributevalue.MarshalMap(toConversationRecord(conv))
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal conversation", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("save conversation", err)
	}
	return nil
}

// GetByID retrieves a conversation through the conversation-ID index
func (r *ConversationRepository) GetByID(ctx context.Context, id valueobjects.ConversationID) (*entities.Conversation, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(conversationKeyPrefix + id.String()))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build conversation query", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(gsi1IndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query conversation", err)
	}
	if len(out.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("conversation")
	}

	var record conversationRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &record); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal conversation", err)
	}

	return fromConversationRecord(record)
}

// GetByUserID retrieves all conversations owned by a user
func (r *ConversationRepository) GetByUserID(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userKeyPrefix + userID)).
		And(expression.Key("SK").BeginsWith(conversationKeyPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build user conversations query", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query user conversations", err)
	}

	conversations := make([]*entities.Conversation, 0, len(out.Items))
	for _, item := range out.Items {
		var record conversationRecord
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return nil, pkgerrors.NewDatabaseError("unmarshal conversation", err)
		}
		conv, err := fromConversationRecord(record)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	return conversations, nil
}

// Delete removes a conversation row. Its messages live under their own
// partition and are deleted separately.
func (r *ConversationRepository) Delete(ctx context.Context, id valueobjects.ConversationID) error {
	conv, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       conversationKey(conv.UserID(), id),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("delete conversation", err)
	}
	return nil
}

func conversationKey(userID string, id valueobjects.ConversationID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userKeyPrefix + userID},
		"SK": &types.AttributeValueMemberS{Value: conversationKeyPrefix + id.String()},
	}
}

func toConversationRecord(conv *entities.Conversation) conversationRecord {
	return conversationRecord{
		PK:             userKeyPrefix + conv.UserID(),
		SK:             conversationKeyPrefix + conv.ID().String(),
		GSI1PK:         conversationKeyPrefix + conv.ID().String(),
		GSI1SK:         conversationKeyPrefix + conv.ID().String(),
		EntityType:     "CONVERSATION",
		ConversationID: conv.ID().String(),
		UserID:         conv.UserID(),
		Title:          conv.Title(),
		CollectionID:   conv.CollectionID(),
		CreatedAt:      conv.CreatedAt().UTC().Format(time.RFC3339Nano),
		UpdatedAt:      conv.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}
}

func fromConversationRecord(record conversationRecord) (*entities.Conversation, error) {
	id, err := valueobjects.NewConversationIDFromString(record.ConversationID)
	if err != nil {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("stored conversation has invalid ID: %v", err))
	}

	createdAt, err := time.Parse(time.RFC3339Nano, record.CreatedAt)
	if err != nil {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("stored conversation has invalid createdAt: %v", err))
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, record.UpdatedAt)
	if err != nil {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("stored conversation has invalid updatedAt: %v", err))
	}

	return entities.ReconstructConversation(
		id,
		record.UserID,
		record.Title,
		record.CollectionID,
		createdAt,
		updatedAt,
	)
}
