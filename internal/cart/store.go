package cart

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront/internal/aws"
)

// Store persists carts keyed by user id.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new carts Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Get fetches a user's cart. Returns (nil, nil) if the user has none.
func (s *Store) Get(ctx context.Context, userID string) (*Cart, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            userKey(userID),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var c Cart
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &c, nil
}

// Put writes the whole cart.
func (s *Store) Put(ctx context.Context, c *Cart) error {
	if c.Items == nil {
		c.Items = []Item{}
	}
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put cart: %w", err)
	}
	return nil
}

// Delete removes a user's cart. Deleting a missing cart is not an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if _, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key:       userKey(userID),
	}); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

func boolPtr(b bool) *bool { return &b }
