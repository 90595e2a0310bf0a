package validation

// OrderItem is one requested order line.
type OrderItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"` // values below 1 are raised to 1
}

// ShippingAddress is the delivery address on an order.
type ShippingAddress struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
}

// CreateOrderRequest is the payload for POST /api/orders
type CreateOrderRequest struct {
	Items           []OrderItem      `json:"items" validate:"required,min=1,dive"`
	Discount        float64          `json:"discount" validate:"gte=0"`
	Tax             float64          `json:"tax" validate:"gte=0"`
	ShippingAddress *ShippingAddress `json:"shipping_address" validate:"omitempty"`
}

// CheckoutRequest is the payload for POST /api/orders/checkout
type CheckoutRequest struct {
	Discount        float64          `json:"discount" validate:"gte=0"`
	Tax             float64          `json:"tax" validate:"gte=0"`
	ShippingAddress *ShippingAddress `json:"shipping_address" validate:"omitempty"`
}

// UpdateStatusRequest is the payload for PUT /api/orders/:id/status. The
// value itself is checked by the order engine.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// PayRequest is the payload for POST /api/payments/pay
type PayRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Method  string `json:"method" validate:"omitempty,max=40"`
}

// ProductRequest is the payload for POST /api/products
type ProductRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Price       float64  `json:"price" validate:"gte=0"`
	Stock       int      `json:"stock" validate:"gte=0"`
	CategoryID  string   `json:"category_id"`
	Brand       string   `json:"brand" validate:"max=100"`
	Images      []string `json:"images" validate:"omitempty,dive,url"`
}

// UpdateProductRequest is the payload for PUT /api/products/:id. Absent
// fields are left unchanged.
type UpdateProductRequest struct {
	Title       *string  `json:"title" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	CategoryID  *string  `json:"category_id"`
	Brand       *string  `json:"brand" validate:"omitempty,max=100"`
	Images      []string `json:"images" validate:"omitempty,dive,url"`
}

// CategoryRequest is the payload for POST /api/categories
type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"omitempty,max=100"`
}

// ReviewRequest is the payload for POST /api/products/:id/reviews. Rating
// bounds are enforced by the aggregator.
type ReviewRequest struct {
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment" validate:"max=2000"`
}

// CartAddRequest is the payload for POST /api/cart/add
type CartAddRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1"`
}

// CartSetRequest is the payload for PUT /api/cart/items/:productId
type CartSetRequest struct {
	Quantity int `json:"quantity"`
}

// CartMergeRequest is the payload for POST /api/cart/merge
type CartMergeRequest struct {
	Items []CartMergeItem `json:"items" validate:"required,min=1,dive"`
}

// CartMergeItem is one guest cart line.
type CartMergeItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// SearchQuery is bound from the GET /api/products query string.
type SearchQuery struct {
	Keyword    string   `form:"keyword"`
	CategoryID string   `form:"category"`
	MinPrice   *float64 `form:"min_price" validate:"omitempty,gte=0"`
	MaxPrice   *float64 `form:"max_price" validate:"omitempty,gte=0"`
	MinRating  *float64 `form:"min_rating" validate:"omitempty,gte=0,lte=5"`
	IDs        string   `form:"ids"`
	Sort       string   `form:"sort" validate:"omitempty,oneof=created_at price rating title num_reviews"`
	Order      string   `form:"order" validate:"omitempty,oneof=asc desc"`
	Page       int      `form:"page" validate:"omitempty,min=1"`
	Limit      int      `form:"limit" validate:"omitempty,min=1"`
}

// StatusQuery is bound from the GET /api/orders query string.
type StatusQuery struct {
	Status string `form:"status"`
}

// SignupRequest is the payload for POST /api/auth/signup
type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

// LoginRequest is the payload for POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
