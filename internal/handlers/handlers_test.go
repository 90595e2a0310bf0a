package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/aws/awstest"
	"github.com/imrishuroy/go-storefront/internal/cart"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/idempotency"
	"github.com/imrishuroy/go-storefront/internal/notify"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/payments"
	"github.com/imrishuroy/go-storefront/internal/users"
)

const jwtSecret = "0123456789abcdef0123456789abcdef"

// Bearer tokens for the fixture's callers, issued by newTestAPI.
var custToken, otherToken, adminToken string

type testAPI struct {
	router   *gin.Engine
	products *catalog.Store
	mug, tea *catalog.Product
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := awstest.NewDynamoDB()
	for table, pk := range map[string]string{
		"products":    "product_id",
		"categories":  "category_id",
		"carts":       "user_id",
		"orders":      "order_id",
		"idempotency": "idempotency_key",
		"users":       "email",
	} {
		db.CreateTable(table, pk)
	}

	products := catalog.NewStore(db, "products", "categories")
	cat := &catalog.Category{Name: "Kitchen"}
	require.NoError(t, products.CreateCategory(context.Background(), cat))
	mug := &catalog.Product{Title: "Mug", Price: 10, CategoryID: cat.ID}
	tea := &catalog.Product{Title: "Tea", Price: 5, CategoryID: cat.ID}
	require.NoError(t, products.Create(context.Background(), mug))
	require.NoError(t, products.Create(context.Background(), tea))

	idem := idempotency.NewStore(db, "idempotency", time.Hour)
	carts := cart.NewService(cart.NewStore(db, "carts"), products)
	orderStore := orders.NewStore(db, "orders", "user_id-created_at-index")
	engine := orders.NewEngine(orders.EngineConfig{
		Store:       orderStore,
		Catalog:     products,
		Carts:       carts,
		Dispatcher:  notify.LogDispatcher{},
		Idempotency: idem,
	})

	tokens, err := auth.NewTokenProvider(jwtSecret, "storefront", time.Hour)
	require.NoError(t, err)
	issue := func(id auth.Identity) string {
		raw, err := tokens.Issue(id)
		require.NoError(t, err)
		return raw
	}
	custToken = issue(auth.Identity{UserID: "u1", Role: auth.RoleCustomer, Name: "Asha", Email: "asha@example.com"})
	otherToken = issue(auth.Identity{UserID: "u2", Role: auth.RoleCustomer, Name: "Ben", Email: "ben@example.com"})
	adminToken = issue(auth.Identity{UserID: "a1", Role: auth.RoleAdmin, Name: "Admin"})

	r := gin.New()
	RegisterRoutes(r, HandlerConfig{
		Auth:        tokens,
		Users:       users.NewService(users.NewStore(db, "users"), tokens, []string{"boss@example.com"}),
		Catalog:     products,
		Reviews:     catalog.NewAggregator(products),
		Carts:       carts,
		Orders:      engine,
		Payments:    payments.NewService(orderStore, notify.LogDispatcher{}, nil),
		Idempotency: idem,
	})
	return &testAPI{router: r, products: products, mug: mug, tea: tea}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	decode(t, w, &body)
	assert.False(t, body.Success)
	return body.Error
}

func (a *testAPI) createOrder(t *testing.T, token string, headers ...string) orders.Order {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/orders", token, map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": a.mug.ID, "quantity": 2},
			{"product_id": a.tea.ID, "quantity": 1},
		},
		"tax": 2,
	}, headers...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var o orders.Order
	decode(t, w, &o)
	return o
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(t, http.MethodGet, "/api/orders/mine", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", errorCode(t, w))

	w = a.do(t, http.MethodGet, "/api/orders", custToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestProducts(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodGet, "/api/products?sort=price&order=asc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page catalog.Page
	decode(t, w, &page)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Tea", page.Items[0].Title)

	// order defaults to descending for any sort field
	w = a.do(t, http.MethodGet, "/api/products?sort=price", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Mug", page.Items[0].Title)

	w = a.do(t, http.MethodGet, "/api/products?ids="+a.mug.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	assert.Equal(t, 1, page.Total)

	w = a.do(t, http.MethodGet, "/api/products?sort=popularity", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodGet, "/api/products/missing", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCode(t, w))

	w = a.do(t, http.MethodGet, "/api/products/"+a.mug.ID+"/recommendations", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var recs []catalog.Product
	decode(t, w, &recs)
	require.Len(t, recs, 1)
	assert.Equal(t, a.tea.ID, recs[0].ID)
}

func TestProductAdmin(t *testing.T) {
	a := newTestAPI(t)
	body := map[string]interface{}{"title": "Kettle", "price": 30}

	w := a.do(t, http.MethodPost, "/api/products", custToken, body)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, "/api/products", adminToken, body)
	require.Equal(t, http.StatusCreated, w.Code)
	var p catalog.Product
	decode(t, w, &p)
	assert.NotEmpty(t, p.ID)

	w = a.do(t, http.MethodPut, "/api/products/"+p.ID, adminToken, map[string]interface{}{"price": 25})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &p)
	assert.Equal(t, 25.0, p.Price)
	assert.Equal(t, "Kettle", p.Title)

	w = a.do(t, http.MethodDelete, "/api/products/"+p.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodDelete, "/api/products/"+p.ID, adminToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategories(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/categories", adminToken, map[string]string{"name": "Home Office"})
	require.Equal(t, http.StatusCreated, w.Code)
	var cat catalog.Category
	decode(t, w, &cat)
	assert.Equal(t, "home-office", cat.Slug)

	w = a.do(t, http.MethodPost, "/api/categories", adminToken, map[string]string{"name": "home office"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cats []catalog.Category
	decode(t, w, &cats)
	assert.Len(t, cats, 2)
}

func TestReviews(t *testing.T) {
	a := newTestAPI(t)
	path := "/api/products/" + a.mug.ID + "/reviews"

	w := a.do(t, http.MethodPost, path, custToken, map[string]interface{}{"rating": 5, "comment": "great"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = a.do(t, http.MethodPost, path, otherToken, map[string]interface{}{"rating": 2})
	require.Equal(t, http.StatusCreated, w.Code)
	var out struct {
		Rating     float64 `json:"rating"`
		NumReviews int     `json:"num_reviews"`
	}
	decode(t, w, &out)
	assert.Equal(t, 3.5, out.Rating)
	assert.Equal(t, 2, out.NumReviews)

	w = a.do(t, http.MethodPost, path, custToken, map[string]interface{}{"rating": 4})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate_review", errorCode(t, w))

	w = a.do(t, http.MethodPost, path, adminToken, map[string]interface{}{"rating": 6})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_rating", errorCode(t, w))

	// fractional ratings are accepted and averaged
	w = a.do(t, http.MethodPost, "/api/products/"+a.tea.ID+"/reviews", custToken, map[string]interface{}{"rating": 4.5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &out)
	assert.Equal(t, 4.5, out.Rating)

	w = a.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reviews []catalog.Review
	decode(t, w, &reviews)
	require.Len(t, reviews, 2)
	assert.Equal(t, "Asha", reviews[0].Name)
}

func TestCart(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodDelete, "/api/cart/remove/"+a.mug.ID, custToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPost, "/api/cart/add", custToken, map[string]interface{}{"product_id": a.mug.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodPost, "/api/cart/add", custToken, map[string]interface{}{"product_id": a.tea.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var view cart.View
	decode(t, w, &view)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, 25.0, view.Subtotal)

	w = a.do(t, http.MethodPut, "/api/cart/items/"+a.tea.ID, custToken, map[string]interface{}{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Len(t, view.Items, 1)

	w = a.do(t, http.MethodPost, "/api/cart/add", custToken, map[string]interface{}{"product_id": "missing"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPost, "/api/cart/merge", custToken, map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": a.mug.ID, "quantity": 1}, {"product_id": "ghost", "quantity": 1}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_product", errorCode(t, w))

	w = a.do(t, http.MethodDelete, "/api/cart/remove/"+a.mug.ID, custToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Empty(t, view.Items)

	w = a.do(t, http.MethodDelete, "/api/cart", custToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestOrders(t *testing.T) {
	a := newTestAPI(t)

	o := a.createOrder(t, custToken)
	assert.Equal(t, 25.0, o.Subtotal)
	assert.Equal(t, 27.0, o.Total)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, "asha@example.com", o.Customer.Email)

	w := a.do(t, http.MethodGet, "/api/orders/"+o.OrderID, otherToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = a.do(t, http.MethodGet, "/api/orders/"+o.OrderID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodGet, "/api/orders/nope", custToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodGet, "/api/orders/mine", custToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []orders.Order
	decode(t, w, &mine)
	assert.Len(t, mine, 1)

	w = a.do(t, http.MethodPost, "/api/orders", custToken, map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": "ghost", "quantity": 1}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_product", errorCode(t, w))

	w = a.do(t, http.MethodPost, "/api/orders", custToken, map[string]interface{}{"items": []interface{}{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrders_IdempotentCreate(t *testing.T) {
	a := newTestAPI(t)

	first := a.createOrder(t, custToken, "Idempotency-Key", "k1")
	second := a.createOrder(t, custToken, "Idempotency-Key", "k1")
	assert.Equal(t, first.OrderID, second.OrderID)

	other := a.createOrder(t, otherToken, "Idempotency-Key", "k1")
	assert.NotEqual(t, first.OrderID, other.OrderID)
}

func TestOrders_Checkout(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/orders/checkout", custToken, map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/api/cart/add", custToken, map[string]interface{}{"product_id": a.mug.ID, "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodPost, "/api/orders/checkout", custToken, map[string]interface{}{"discount": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var o orders.Order
	decode(t, w, &o)
	assert.Equal(t, 25.0, o.Total)

	w = a.do(t, http.MethodGet, "/api/cart", custToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view cart.View
	decode(t, w, &view)
	assert.Empty(t, view.Items)
}

func TestOrders_UpdateStatus(t *testing.T) {
	a := newTestAPI(t)
	o := a.createOrder(t, custToken)
	path := "/api/orders/" + o.OrderID + "/status"

	w := a.do(t, http.MethodPut, path, custToken, map[string]string{"status": "Shipped"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPut, path, adminToken, map[string]string{"status": "Shipped"})
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Order         orders.Order   `json:"order"`
		Notifications notify.Summary `json:"notifications"`
	}
	decode(t, w, &out)
	assert.Equal(t, orders.StatusShipped, out.Order.Status)
	assert.Equal(t, `Email sent to asha@example.com: Your order `+o.OrderID+` status is now "Shipped"`, out.Notifications.Email)
	assert.Equal(t, "SMS sent to Asha: Order "+o.OrderID+" → Shipped", out.Notifications.SMS)

	w = a.do(t, http.MethodPut, path, adminToken, map[string]string{"status": "Bogus"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_status", errorCode(t, w))

	w = a.do(t, http.MethodGet, "/api/orders?status=Shipped", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []orders.Order
	decode(t, w, &list)
	require.Len(t, list, 1)

	w = a.do(t, http.MethodGet, "/api/orders?status=Lost", adminToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPay(t *testing.T) {
	a := newTestAPI(t)
	o := a.createOrder(t, custToken)

	w := a.do(t, http.MethodPost, "/api/payments/pay", otherToken, map[string]string{"order_id": o.OrderID})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPost, "/api/payments/pay", custToken, map[string]string{"order_id": o.OrderID, "method": "UPI"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res payments.Result
	decode(t, w, &res)
	assert.Equal(t, "UPI", res.Method)
	assert.Equal(t, "Paid", res.Status)
	assert.Equal(t, 27.0, res.Amount)

	w = a.do(t, http.MethodPost, "/api/payments/pay", custToken, map[string]string{"order_id": o.OrderID})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_paid", errorCode(t, w))

	w = a.do(t, http.MethodPost, "/api/payments/pay", custToken, map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPay_IdempotencyKey(t *testing.T) {
	a := newTestAPI(t)
	o := a.createOrder(t, custToken)
	body := map[string]string{"order_id": o.OrderID}

	w := a.do(t, http.MethodPost, "/api/payments/pay", custToken, body, "Idempotency-Key", "pay-1")
	require.Equal(t, http.StatusOK, w.Code)
	var first payments.Result
	decode(t, w, &first)

	w = a.do(t, http.MethodPost, "/api/payments/pay", custToken, body, "Idempotency-Key", "pay-1")
	require.Equal(t, http.StatusOK, w.Code)
	var replayed payments.Result
	decode(t, w, &replayed)
	assert.Equal(t, first.PaymentID, replayed.PaymentID)

	other := a.createOrder(t, custToken)
	w = a.do(t, http.MethodPost, "/api/payments/pay", custToken, map[string]string{"order_id": other.OrderID}, "Idempotency-Key", "pay-1")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = a.do(t, http.MethodPost, "/api/payments/pay", custToken, body, "Idempotency-Key", "pay-2")
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAccounts(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]interface{}{
		"name": "Chen", "email": "Chen@Example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sess users.Session
	decode(t, w, &sess)
	require.NotEmpty(t, sess.Token)
	assert.Equal(t, "chen@example.com", sess.User.Email)
	assert.Equal(t, auth.RoleCustomer, sess.User.Role)

	w = a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]interface{}{
		"name": "Other", "email": "chen@example.com", "password": "secret2",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "email_taken", errorCode(t, w))

	w = a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]interface{}{"email": "x@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", errorCode(t, w))

	w = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]interface{}{"email": "chen@example.com", "password": "nope"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_credentials", errorCode(t, w))

	w = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]interface{}{"email": "chen@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &sess)

	// the issued token authenticates like any other bearer
	w = a.do(t, http.MethodGet, "/api/auth/me", sess.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User auth.Identity `json:"user"`
	}
	decode(t, w, &me)
	assert.Equal(t, sess.User, me.User)

	w = a.do(t, http.MethodGet, "/api/cart", sess.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccounts_AdminByEmail(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]interface{}{
		"name": "Boss", "email": "boss@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sess users.Session
	decode(t, w, &sess)

	w = a.do(t, http.MethodGet, "/api/orders", sess.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
