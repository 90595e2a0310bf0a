package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Scopes name the operation a key was used for.
const (
	ScopeCreateOrder = "orders.create"
	ScopePay         = "payments.pay"
)

// Record is the shape persisted in the idempotency DynamoDB table.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK, see StorageKey
	Scope          string    `dynamodbav:"scope"`
	UserID         string    `dynamodbav:"user_id"`
	Status         string    `dynamodbav:"status"`
	ResourceID     string    `dynamodbav:"resource_id,omitempty"`     // order id the request acted on
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`   // small responses only
	ResponseStatus int       `dynamodbav:"response_status,omitempty"` // e.g., 201
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// StorageKey namespaces a client-supplied key by operation and user so two
// users, or two operations, never share a record.
func StorageKey(scope, userID, key string) string {
	return scope + "#" + userID + "#" + key
}
