package users

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/aws"
)

// Store encapsulates operations on the users table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new users Store. The table is keyed by email.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Create inserts u. A second account for the same e-mail fails with
// apperr.ErrEmailTaken.
func (s *Store) Create(ctx context.Context, u *User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return errors.Wrap(err, "marshal user")
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(email)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return apperr.ErrEmailTaken
		}
		return errors.Wrap(err, "put user")
	}
	return nil
}

// GetByEmail fetches an account. Returns (nil, nil) if there is none.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: email},
		},
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var u User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, errors.Wrap(err, "unmarshal user")
	}
	return &u, nil
}

func boolPtr(b bool) *bool { return &b }
