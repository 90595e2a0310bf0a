// Package idempotency records Idempotency-Key usage so retried requests
// replay their first outcome instead of acting twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-storefront/internal/aws"
)

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // default TTL window when creating entries
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// ttlWindow is how long a key is remembered (e.g., 48*time.Hour).
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// TableName is the table records are written to, for callers that include
// a record in their own transaction.
func (s *Store) TableName() string { return s.tableName }

// TTL is the configured retention window.
func (s *Store) TTL() time.Duration { return s.ttlWindow }

// NewRecord builds an IN_PROGRESS record for key without writing it.
func (s *Store) NewRecord(scope, userID, key, resourceID string) Record {
	now := s.nowFunc().UTC()
	return Record{
		IdempotencyKey: StorageKey(scope, userID, key),
		Scope:          scope,
		UserID:         userID,
		Status:         StatusInProgress,
		ResourceID:     resourceID,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}
}

// CreateIfNotExists writes rec if its key is unused.
// Returns (created=true, nil) if successfully created.
// Returns (created=false, nil) if the record already exists (caller should Get to inspect).
// Returns (created=false, err) on other errors.
func (s *Store) CreateIfNotExists(ctx context.Context, rec Record) (bool, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(idempotency_key)"),
	})
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get retrieves a record by its storage key. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, storageKey string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            recordKey(storageKey),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// MarkDone sets status to DONE and stores a small response body & status.
func (s *Store) MarkDone(ctx context.Context, storageKey, responseBody string, responseStatus int) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      recordKey(storageKey),
		UpdateExpression:         aws.String("SET #s = :done, response_body = :rb, response_status = :rs, updated_at = :ua"),
		ConditionExpression:      aws.String("attribute_exists(idempotency_key)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":done": &types.AttributeValueMemberS{Value: StatusDone},
			":rb":   &types.AttributeValueMemberS{Value: responseBody},
			":rs":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", responseStatus)},
			":ua":   &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("update item (mark done): %w", err)
	}
	return nil
}

// MarkFailed marks the record FAILED with a note. A failed key may be retried.
func (s *Store) MarkFailed(ctx context.Context, storageKey, note string) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      recordKey(storageKey),
		UpdateExpression:         aws.String("SET #s = :failed, note = :n, updated_at = :ua"),
		ConditionExpression:      aws.String("attribute_exists(idempotency_key)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed": &types.AttributeValueMemberS{Value: StatusFailed},
			":n":      &types.AttributeValueMemberS{Value: note},
			":ua":     &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("update item (mark failed): %w", err)
	}
	return nil
}

// Begin claims rec's key. It returns (nil, nil) when the caller now owns the
// key and should perform the operation, or the existing record when the key
// was already used. A FAILED record is released and claimed again.
func (s *Store) Begin(ctx context.Context, rec Record) (*Record, error) {
	for attempt := 0; attempt < 2; attempt++ {
		created, err := s.CreateIfNotExists(ctx, rec)
		if err != nil {
			return nil, err
		}
		if created {
			return nil, nil
		}
		existing, err := s.Get(ctx, rec.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			// expired between the put and the read
			continue
		}
		if existing.Status != StatusFailed {
			return existing, nil
		}
		if err := s.Release(ctx, rec.IdempotencyKey); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("claim idempotency key %s: lost race", rec.IdempotencyKey)
}

// Release deletes a FAILED record so its key can be used again.
func (s *Store) Release(ctx context.Context, storageKey string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:                 &s.tableName,
		Key:                       recordKey(storageKey),
		ConditionExpression:       aws.String("#s = :failed"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":failed": &types.AttributeValueMemberS{Value: StatusFailed}},
	})
	if err != nil {
		return fmt.Errorf("delete item (release): %w", err)
	}
	return nil
}

func recordKey(storageKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: storageKey},
	}
}

func boolPtr(b bool) *bool { return &b }
