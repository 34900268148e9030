package handler

import (
	"time"

	"github.com/shopspring/decimal"
)

// ErrorResponse is the envelope every failed request renders.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Auth & users ---

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role"     validate:"omitempty,oneof=admin employee customer"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	CreatedByID string    `json:"created_by_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type authResponse struct {
	Token string        `json:"token,omitempty"`
	User  *userResponse `json:"user,omitempty"`
}

// --- Orders ---

type orderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"   validate:"required,gt=0"`
}

type createOrderRequest struct {
	Items        []orderItemRequest `json:"items"          validate:"required,min=1,dive"`
	Status       string             `json:"status"         validate:"omitempty,oneof=draft pending"`
	CustomerID   string             `json:"customer_id"`
	AssignedToID string             `json:"assigned_to_id"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,oneof=draft pending completed cancelled"`
}

type reassignRequest struct {
	AssignedToID string `json:"assigned_to_id" validate:"required"`
}

type orderItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" swaggertype:"string"`
	Subtotal  decimal.Decimal `json:"subtotal"   swaggertype:"string"`
}

type orderLinks struct {
	Self     string `json:"self"`
	Customer string `json:"customer"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	CustomerID   string              `json:"customer_id"`
	CreatedByID  string              `json:"created_by_id"`
	AssignedToID string              `json:"assigned_to_id,omitempty"`
	Status       string              `json:"status"`
	Total        decimal.Decimal     `json:"total" swaggertype:"string"`
	Items        []orderItemResponse `json:"items,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Links        orderLinks          `json:"_links"`
}

type orderListResponse struct {
	Data       []orderResponse `json:"data"`
	Pagination pagination      `json:"pagination"`
}

// --- Customers ---

type assignRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
}

type assignmentResponse struct {
	CustomerID string    `json:"customer_id"`
	EmployeeID string    `json:"employee_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

type customerResponse struct {
	userResponse
	AssignedToID string `json:"assigned_to_id,omitempty"`
}

type customerListResponse struct {
	Data       []userResponse `json:"data"`
	Pagination pagination     `json:"pagination"`
}

// --- Products ---

type createProductRequest struct {
	SKU   string          `json:"sku"   validate:"required,max=64"`
	Name  string          `json:"name"  validate:"required,max=200"`
	Price decimal.Decimal `json:"price" swaggertype:"string"`
	Stock int             `json:"stock" validate:"gte=0"`
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type productResponse struct {
	ID        string          `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price" swaggertype:"string"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type productListResponse struct {
	Data       []productResponse `json:"data"`
	Pagination pagination        `json:"pagination"`
}

// --- Shared ---

type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// listQuery binds the paging parameters shared by list endpoints.
type listQuery struct {
	Page  int `query:"page"  validate:"gte=0"`
	Limit int `query:"limit" validate:"gte=0"`
}
