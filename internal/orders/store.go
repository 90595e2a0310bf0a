package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront/internal/aws"
)

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	userIndex string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store. userIndex is the GSI keyed by
// user_id (partition) and created_at (sort).
func NewStore(client aws.DynamoDBAPI, tableName, userIndex string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		userIndex: userIndex,
		nowFunc:   time.Now,
	}
}

var (
	// ErrStatusMismatch is returned when a conditional status write finds the
	// order in a different state than expected.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrDuplicateRequest is returned when the idempotency record of a
	// transactional create already exists.
	ErrDuplicateRequest = errors.New("idempotency key already used")
	// ErrOrderExists is returned when the order id of a transactional create
	// is already taken.
	ErrOrderExists = errors.New("order id already exists")
)

// Create persists a new order. order.OrderID must be set by the caller.
func (s *Store) Create(ctx context.Context, order *Order) error {
	s.stamp(order)
	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(order_id)"),
	})
	if err != nil {
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// CreateWithIdempotencyTransaction atomically creates:
//   - idempotency record in idempotencyTable (with ConditionExpression attribute_not_exists(idempotency_key))
//   - order record in orders table
//
// idempotencyItem must marshal to a map carrying idempotency_key. If it has no
// expires_at attribute one is added from ttlWindow.
func (s *Store) CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, order *Order, ttlWindow time.Duration) error {
	idempMap, err := attributevalue.MarshalMap(idempotencyItem)
	if err != nil {
		return fmt.Errorf("marshal idempotency item: %w", err)
	}
	if _, ok := idempMap["expires_at"]; !ok && ttlWindow > 0 {
		expires := s.nowFunc().Add(ttlWindow).Unix()
		idempMap["expires_at"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expires)}
	}

	s.stamp(order)
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &idempotencyTable,
					Item:                idempMap,
					ConditionExpression: aws.String("attribute_not_exists(idempotency_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: aws.String("attribute_not_exists(order_id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return canceledCreate(tce)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// canceledCreate classifies a cancelled create transaction by the reason
// reported for each item: index 0 is the idempotency record, 1 the order.
func canceledCreate(tce *types.TransactionCanceledException) error {
	reason := func(i int) string {
		if i < len(tce.CancellationReasons) && tce.CancellationReasons[i].Code != nil {
			return *tce.CancellationReasons[i].Code
		}
		return ""
	}
	switch {
	case reason(0) == "ConditionalCheckFailed":
		return fmt.Errorf("transaction canceled: %w", ErrDuplicateRequest)
	case reason(1) == "ConditionalCheckFailed":
		return fmt.Errorf("transaction canceled: %w", ErrOrderExists)
	default:
		return fmt.Errorf("transaction canceled (%s, %s): %w", reason(0), reason(1), tce)
	}
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       orderKey(orderID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// ListByUser returns a user's orders, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.userIndex,
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: boolPtr(false),
	}

	result := []Order{}
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query orders: %w", err)
		}
		page, err := unmarshalOrders(out.Items)
		if err != nil {
			return nil, err
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	newestFirst(result)
	return result, nil
}

// ListAll returns every order, newest first, optionally only those in status.
func (s *Store) ListAll(ctx context.Context, status Status) ([]Order, error) {
	input := &dyn.ScanInput{TableName: &s.tableName}
	if status != "" {
		input.FilterExpression = aws.String("#s = :status")
		input.ExpressionAttributeNames = map[string]string{"#s": "status"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		}
	}

	result := []Order{}
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		page, err := unmarshalOrders(out.Items)
		if err != nil {
			return nil, err
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	newestFirst(result)
	return result, nil
}

// UpdateStatus conditionally updates the order status from expected -> newStatus
// and returns the updated order. Returns ErrStatusMismatch if the order is
// missing or no longer in expected.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, expectedStatus, newStatus Status) (*Order, error) {
	now := s.nowFunc().UTC()
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      orderKey(orderID),
		UpdateExpression:         aws.String("SET #s = :new, updated_at = :ua"),
		ConditionExpression:      aws.String("attribute_exists(order_id) AND #s = :expected"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(newStatus)},
			":expected": &types.AttributeValueMemberS{Value: string(expectedStatus)},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// MarkPaid moves the order to Paid and records the payment, unless it is
// already Paid. Returns ErrStatusMismatch if the order is missing or paid.
func (s *Store) MarkPaid(ctx context.Context, orderID string, p Payment) (*Order, error) {
	now := s.nowFunc().UTC()
	paidAt := p.PaidAt.UTC().Format(time.RFC3339Nano)
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key:       orderKey(orderID),
		UpdateExpression: aws.String("SET #s = :paid, payment_id = :pid, payment_method = :method, " +
			"payment_provider = :provider, paid_at = :pat, updated_at = :ua"),
		ConditionExpression:      aws.String("attribute_exists(order_id) AND #s <> :paid"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":paid":     &types.AttributeValueMemberS{Value: string(StatusPaid)},
			":pid":      &types.AttributeValueMemberS{Value: p.ID},
			":method":   &types.AttributeValueMemberS{Value: p.Method},
			":provider": &types.AttributeValueMemberS{Value: p.Provider},
			":pat":      &types.AttributeValueMemberS{Value: paidAt},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

func (s *Store) stamp(order *Order) {
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
}

func unmarshalOrders(items []map[string]types.AttributeValue) ([]Order, error) {
	out := make([]Order, 0, len(items))
	for _, item := range items {
		var o Order
		if err := attributevalue.UnmarshalMap(item, &o); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		out = append(out, o)
	}
	return out, nil
}

func newestFirst(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].OrderID > orders[j].OrderID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func boolPtr(b bool) *bool { return &b }
