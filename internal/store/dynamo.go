package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	sessionPrefix = "SESSION#"
	taskPrefix    = "TASK#"
	skMeta        = "META"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore implements Store on a single DynamoDB table keyed by PK/SK.
// Sessions live at PK=SESSION#{id}, SK=META and video tasks at
// PK=TASK#{id}, SK=META. Every item carries an expiresAt TTL attribute.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// expiresAt returns the Unix epoch timestamp for record expiration (now + SessionTTL).
func expiresAt() int64 {
	return time.Now().Add(SessionTTL).Unix()
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// condition is an optional ConditionExpression for putItem.
type condition struct {
	expr   string
	names  map[string]string
	values map[string]types.AttributeValue
}

// putItem marshals a domain object and writes it with PK, SK, and TTL.
// A failed condition surfaces as *types.ConditionalCheckFailedException in
// the wrapped error.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data any, cond *condition) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt(), 10)}

	input := &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}
	if cond != nil {
		input.ConditionExpression = aws.String(cond.expr)
		input.ExpressionAttributeNames = cond.names
		input.ExpressionAttributeValues = cond.values
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item and unmarshals it into out.
// Returns false if the item does not exist (out is not modified).
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out any) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

// --- Session operations ---

func (s *DynamoStore) PutSession(ctx context.Context, rec *SessionRecord) error {
	created, updated := rec.CreatedAt, rec.UpdatedAt
	stamp(&created, &updated)
	c := rec.Clone()
	c.CreatedAt, c.UpdatedAt = created, updated

	cond := &condition{expr: "attribute_not_exists(PK)"}
	if rec.Version != 1 {
		cond = &condition{
			expr:  "#v = :prev",
			names: map[string]string{"#v": "version"},
			values: map[string]types.AttributeValue{
				":prev": &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.Version-1, 10)},
			},
		}
	}

	err := s.putItem(ctx, sessionPrefix+rec.ID, skMeta, c, cond)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrVersionConflict
		}
		return fmt.Errorf("put session %s: %w", rec.ID, err)
	}

	rec.CreatedAt, rec.UpdatedAt = created, updated
	log.Debug().Str("sessionId", rec.ID).Int64("version", rec.Version).Msg("Session persisted to DynamoDB")
	return nil
}

func (s *DynamoStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	var rec SessionRecord
	found, err := s.getItem(ctx, sessionPrefix+id, skMeta, &rec)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}

	rec.ID = id
	return &rec, nil
}

func (s *DynamoStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 key(sessionPrefix+id, skMeta),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	log.Debug().Str("sessionId", id).Msg("Session deleted from DynamoDB")
	return nil
}

// --- Video task operations ---

func (s *DynamoStore) PutTask(ctx context.Context, task *VideoTask) error {
	stamp(&task.CreatedAt, &task.UpdatedAt)
	if err := s.putItem(ctx, taskPrefix+task.ID, skMeta, task, nil); err != nil {
		return fmt.Errorf("put video task %s: %w", task.ID, err)
	}

	log.Debug().
		Str("taskId", task.ID).
		Str("sessionId", task.SessionID).
		Str("status", task.Status).
		Int("progress", task.Progress).
		Msg("Video task persisted")
	return nil
}

func (s *DynamoStore) GetTask(ctx context.Context, id string) (*VideoTask, error) {
	var task VideoTask
	found, err := s.getItem(ctx, taskPrefix+id, skMeta, &task)
	if err != nil {
		return nil, fmt.Errorf("get video task %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}

	task.ID = id
	return &task, nil
}
