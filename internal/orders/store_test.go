package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront/internal/aws"
	"github.com/imrishuroy/go-storefront/internal/aws/awstest"
	"github.com/imrishuroy/go-storefront/internal/idempotency"
)

const (
	ordersTable      = "orders"
	idempotencyTable = "idempotency"
)

func newTestOrderStore(t *testing.T) (*Store, *awstest.DynamoDB) {
	t.Helper()
	db := awstest.NewDynamoDB()
	db.CreateTable(ordersTable, "order_id")
	db.CreateTable(idempotencyTable, "idempotency_key")
	return NewStore(db, ordersTable, "user_id-created_at-index"), db
}

func sampleOrder(id, user string, created time.Time) *Order {
	return &Order{
		OrderID:   id,
		UserID:    user,
		Customer:  Customer{Name: "Asha", Email: "asha@example.com"},
		Items:     []LineItem{{ProductID: "p1", Title: "Mug", Quantity: 2, Price: 10}},
		Subtotal:  20,
		Total:     20,
		Status:    StatusPending,
		CreatedAt: created,
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	s, _ := newTestOrderStore(t)
	ctx := context.Background()

	o := sampleOrder("o1", "u1", time.Time{})
	require.NoError(t, s.Create(ctx, o))
	assert.False(t, o.CreatedAt.IsZero())

	got, err := s.Get(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, []LineItem{{ProductID: "p1", Title: "Mug", Quantity: 2, Price: 10}}, got.Items)

	missing, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// order ids are never reused
	require.Error(t, s.Create(ctx, sampleOrder("o1", "u2", time.Time{})))
}

func TestStore_CreateWithIdempotencyTransaction(t *testing.T) {
	s, db := newTestOrderStore(t)
	ctx := context.Background()
	idem := idempotency.NewStore(db, idempotencyTable, time.Hour)

	rec := idem.NewRecord(idempotency.ScopeCreateOrder, "u1", "k1", "o1")
	require.NoError(t, s.CreateWithIdempotencyTransaction(ctx, idempotencyTable, rec, sampleOrder("o1", "u1", time.Time{}), time.Hour))
	assert.Equal(t, 1, db.Len(ordersTable))
	assert.Equal(t, 1, db.Len(idempotencyTable))

	// same key, different order: nothing is written
	rec2 := idem.NewRecord(idempotency.ScopeCreateOrder, "u1", "k1", "o2")
	err := s.CreateWithIdempotencyTransaction(ctx, idempotencyTable, rec2, sampleOrder("o2", "u1", time.Time{}), time.Hour)
	require.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Equal(t, 1, db.Len(ordersTable))
}

func TestStore_CreateWithIdempotencyTransaction_OrderIDTaken(t *testing.T) {
	s, db := newTestOrderStore(t)
	ctx := context.Background()
	idem := idempotency.NewStore(db, idempotencyTable, time.Hour)
	require.NoError(t, s.Create(ctx, sampleOrder("o1", "u1", time.Time{})))

	rec := idem.NewRecord(idempotency.ScopeCreateOrder, "u1", "fresh-key", "o1")
	err := s.CreateWithIdempotencyTransaction(ctx, idempotencyTable, rec, sampleOrder("o1", "u1", time.Time{}), time.Hour)
	require.ErrorIs(t, err, ErrOrderExists)
	assert.False(t, errors.Is(err, ErrDuplicateRequest))
	assert.Equal(t, 0, db.Len(idempotencyTable))
}

func TestStore_CreateWithIdempotencyTransaction_ConflictIsNotDuplicate(t *testing.T) {
	s, db := newTestOrderStore(t)
	db.Errs["TransactWriteItems"] = &types.TransactionCanceledException{
		Message: aws.String("transaction cancelled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("TransactionConflict")},
			{Code: aws.String("None")},
		},
	}
	idem := idempotency.NewStore(db, idempotencyTable, time.Hour)

	rec := idem.NewRecord(idempotency.ScopeCreateOrder, "u1", "k1", "o1")
	err := s.CreateWithIdempotencyTransaction(context.Background(), idempotencyTable, rec, sampleOrder("o1", "u1", time.Time{}), time.Hour)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicateRequest))
	assert.False(t, errors.Is(err, ErrOrderExists))
	assert.Contains(t, err.Error(), "TransactionConflict")
}

func TestStore_CreateWithIdempotencyTransaction_AddsTTL(t *testing.T) {
	s, db := newTestOrderStore(t)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return now }

	item := map[string]interface{}{"idempotency_key": "raw-key", "status": idempotency.StatusDone}
	require.NoError(t, s.CreateWithIdempotencyTransaction(context.Background(), idempotencyTable, item, sampleOrder("o1", "u1", time.Time{}), 2*time.Hour))

	var rec idempotency.Record
	require.NoError(t, attributevalue.UnmarshalMap(db.Item(idempotencyTable, "raw-key"), &rec))
	assert.Equal(t, now.Add(2*time.Hour).Unix(), rec.ExpiresAt)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s, _ := newTestOrderStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, sampleOrder("a", "u1", base)))
	require.NoError(t, s.Create(ctx, sampleOrder("b", "u2", base.Add(time.Hour))))
	require.NoError(t, s.Create(ctx, sampleOrder("c", "u1", base.Add(2*time.Hour))))

	mine, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "c", mine[0].OrderID)
	assert.Equal(t, "a", mine[1].OrderID)

	all, err := s.ListAll(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].OrderID, all[1].OrderID, all[2].OrderID})
}

func TestStore_ListAllByStatus(t *testing.T) {
	s, _ := newTestOrderStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sampleOrder("a", "u1", time.Time{})))
	require.NoError(t, s.Create(ctx, sampleOrder("b", "u1", time.Time{})))
	_, err := s.UpdateStatus(ctx, "b", StatusPending, StatusShipped)
	require.NoError(t, err)

	shipped, err := s.ListAll(ctx, StatusShipped)
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, "b", shipped[0].OrderID)
}

func TestStore_UpdateStatus(t *testing.T) {
	s, _ := newTestOrderStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sampleOrder("o1", "u1", time.Time{})))

	updated, err := s.UpdateStatus(ctx, "o1", StatusPending, StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, updated.Status)
	assert.Equal(t, "asha@example.com", updated.Customer.Email)

	_, err = s.UpdateStatus(ctx, "o1", StatusPending, StatusDelivered)
	assert.True(t, errors.Is(err, ErrStatusMismatch))

	_, err = s.UpdateStatus(ctx, "missing", StatusPending, StatusPaid)
	assert.True(t, errors.Is(err, ErrStatusMismatch))
}

func TestStore_MarkPaid(t *testing.T) {
	s, _ := newTestOrderStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sampleOrder("o1", "u1", time.Time{})))

	paidAt := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	p := Payment{ID: "PAY-1", Method: "Card", Provider: "mock", PaidAt: paidAt}
	o, err := s.MarkPaid(ctx, "o1", p)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, "PAY-1", o.PaymentID)
	assert.Equal(t, "Card", o.PaymentMethod)
	assert.Equal(t, "mock", o.PaymentProvider)
	require.NotNil(t, o.PaidAt)
	assert.True(t, paidAt.Equal(*o.PaidAt))

	_, err = s.MarkPaid(ctx, "o1", Payment{ID: "PAY-2"})
	require.ErrorIs(t, err, ErrStatusMismatch)

	got, err := s.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", got.PaymentID)
}

func TestStore_PropagatesClientErrors(t *testing.T) {
	s, db := newTestOrderStore(t)
	db.Errs["GetItem"] = errors.New("timeout")
	_, err := s.Get(context.Background(), "o1")
	require.ErrorContains(t, err, "timeout")
}
