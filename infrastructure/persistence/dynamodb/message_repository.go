// Package dynamodb implements the persistence ports on a single DynamoDB
// table. Messages key on their conversation (PK=CONV#id, SK=MSG#id) so one
// query fetches a whole graph; GSI2 indexes messages by their own ID for
// direct lookups.
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

	"loom-backend/application/ports"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

const (
	conversationKeyPrefix = "CONV#"
	messageKeyPrefix      = "MSG#"
	userKeyPrefix         = "USER#"

	gsi2IndexName = "GSI2"
)

// messageRecord is the DynamoDB shape of a message
type messageRecord struct {
	PK             string  `dynamodbav:"PK"`
	SK             string  `dynamodbav:"SK"`
	GSI2PK         string  `dynamodbav:"GSI2PK"`
	GSI2SK         string  `dynamodbav:"GSI2SK"`
	EntityType     string  `dynamodbav:"EntityType"`
	MessageID      string  `dynamodbav:"MessageID"`
	ConversationID string  `dynamodbav:"ConversationID"`
	Role           string  `dynamodbav:"Role"`
	Content        string  `dynamodbav:"Content"`
	Model          string  `dynamodbav:"Model,omitempty"`
	ParentID       string  `dynamodbav:"ParentID,omitempty"`
	PositionX      float64 `dynamodbav:"PositionX"`
	PositionY      float64 `dynamodbav:"PositionY"`
	IsRootNode     bool    `dynamodbav:"IsRootNode"`
	RootNodeName   string  `dynamodbav:"RootNodeName,omitempty"`
	IsError        bool    `dynamodbav:"IsError"`
	InputTokens    int     `dynamodbav:"InputTokens"`
	OutputTokens   int     `dynamodbav:"OutputTokens"`
	CreatedAt      string  `dynamodbav:"CreatedAt"`
	UpdatedAt      string  `dynamodbav:"UpdatedAt"`
}

// MessageRepository persists messages in DynamoDB
type MessageRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewMessageRepository creates the repository
func NewMessageRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Save persists a message (create or full overwrite)
func (r *MessageRepository) Save(ctx context.Context, msg *entities.Message) error {
	item, err := attributevalue.MarshalMap(toMessageRecord(msg))
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal message", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("save message", err)
	}
	return nil
}

// GetByID retrieves a message through the message-ID index
func (r *MessageRepository) GetByID(ctx context.Context, id valueobjects.MessageID) (*entities.Message, error) {
	keyCond := expression.Key("GSI2PK").Equal(expression.Value(messageKeyPrefix + id.String()))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build message query", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(gsi2IndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query message", err)
	}
	if len(out.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("message")
	}

	var record messageRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &record); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal message", err)
	}

	return fromMessageRecord(record)
}

// GetByConversationID retrieves all messages of a conversation with one
// paginated query
func (r *MessageRepository) GetByConversationID(ctx context.Context, conversationID valueobjects.ConversationID) ([]*entities.Message, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(conversationKeyPrefix + conversationID.String())).
		And(expression.Key("SK").BeginsWith(messageKeyPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build conversation query", err)
	}

	var messages []*entities.Message
	var lastKey map[string]types.AttributeValue

	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query conversation messages", err)
		}

		for _, item := range out.Items {
			var record messageRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, pkgerrors.NewDatabaseError("unmarshal message", err)
			}
			msg, err := fromMessageRecord(record)
			if err != nil {
				return nil, err
			}
			messages = append(messages, msg)
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}

	return messages, nil
}

// Delete removes a message. The table keys are resolved through GSI2 first.
func (r *MessageRepository) Delete(ctx context.Context, id valueobjects.MessageID) error {
	msg, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       messageKey(msg.ConversationID(), id),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("delete message", err)
	}
	return nil
}

// SaveTx registers a message put in the transaction
func (r *MessageRepository) SaveTx(ctx context.Context, uow ports.UnitOfWork, msg *entities.Message) error {
	u, ok := uow.(*UnitOfWork)
	if !ok {
		return pkgerrors.NewInternalError("unit of work is not a dynamodb unit of work")
	}

	item, err := attributevalue.MarshalMap(toMessageRecord(msg))
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal message", err)
	}

	u.register(types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(r.tableName),
			Item:      item,
		},
	})
	return nil
}

// DeleteTx registers a message delete in the transaction. The table keys are
// resolved before the transaction commits.
func (r *MessageRepository) DeleteTx(ctx context.Context, uow ports.UnitOfWork, id valueobjects.MessageID) error {
	u, ok := uow.(*UnitOfWork)
	if !ok {
		return pkgerrors.NewInternalError("unit of work is not a dynamodb unit of work")
	}

	msg, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	u.register(types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(r.tableName),
			Key:       messageKey(msg.ConversationID(), id),
		},
	})
	return nil
}

func messageKey(conversationID valueobjects.ConversationID, id valueobjects.MessageID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: conversationKeyPrefix + conversationID.String()},
		"SK": &types.AttributeValueMemberS{Value: messageKeyPrefix + id.String()},
	}
}

func toMessageRecord(msg *entities.Message) messageRecord {
	return messageRecord{
		PK:             conversationKeyPrefix + msg.ConversationID().String(),
		SK:             messageKeyPrefix + msg.ID().String(),
		GSI2PK:         messageKeyPrefix + msg.ID().String(),
		GSI2SK:         messageKeyPrefix + msg.ID().String(),
		EntityType:     "MESSAGE",
		MessageID:      msg.ID().String(),
		ConversationID: msg.ConversationID().String(),
		Role:           msg.Role().String(),
		Content:        msg.Content(),
		Model:          msg.Model(),
		ParentID:       msg.ParentID().String(),
		PositionX:      msg.Position().X(),
		PositionY:      msg.Position().Y(),
		IsRootNode:     msg.IsRootNode(),
		RootNodeName:   msg.RootNodeName(),
		IsError:        msg.IsError(),
		InputTokens:    msg.InputTokens(),
		OutputTokens:   msg.OutputTokens(),
		CreatedAt:      msg.CreatedAt().UTC().Format(time.RFC3339Nano),
		UpdatedAt:      msg.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}
}

func fromMessageRecord(record messageRecord) (*entities.Message, error) {
	id, err := valueobjects.NewMessageIDFromString(record.MessageID)
	if err != nil {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("stored message has invalid ID: %v", err))
	}

	conversationID, err := valueobjects.NewConversationIDFromString(record.ConversationID)
	if err != nil {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("stored message has invalid conversation ID: %v", err))
	}

	role, err := valueobjects.NewRole(record.Role)
	if err != nil {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("stored message has invalid role: %v", err))
	}

	parentID := valueobjects.MessageID{}
	if record.ParentID != "" {
		parentID, err = valueobjects.NewMessageIDFromString(record.ParentID)
		if err != nil {
			return nil, pkgerrors.NewInternalError(fmt.Sprintf("stored message has invalid parent ID: %v", err))
		}
	}

	position, err := valueobjects.NewPosition(record.PositionX, record.PositionY)
	if err != nil {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("stored message has invalid position: %v", err))
	}

	createdAt, err := time.Parse(time.RFC3339Nano, record.CreatedAt)
	if err != nil {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("stored message has invalid createdAt: %v", err))
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, record.UpdatedAt)
	if err != nil {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("stored message has invalid updatedAt: %v", err))
	}

	return entities.ReconstructMessage(
		id,
		conversationID,
		role,
		record.Content,
		record.Model,
		parentID,
		position,
		record.IsRootNode,
		record.RootNodeName,
		record.IsError,
		record.InputTokens,
		record.OutputTokens,
		createdAt,
		updatedAt,
	)
}
