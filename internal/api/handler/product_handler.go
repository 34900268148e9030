package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bizdesk/backoffice/internal/core/ports"
)

// ProductHandler exposes the catalogue.
type ProductHandler struct {
	service ports.ProductService
}

func NewProductHandler(service ports.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// Create handles POST /v1/products.
//
// @Summary      Create a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createProductRequest  true  "Product"
// @Success      201   {object}  productResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /v1/products [post]
func (h *ProductHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req createProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	p, err := h.service.CreateProduct(c.Request().Context(), actor, ports.CreateProductInput{
		SKU:   req.SKU,
		Name:  req.Name,
		Price: req.Price,
		Stock: req.Stock,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toProductResponse(p))
}

// Get handles GET /v1/products/:id.
//
// @Summary      Get a product
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  productResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/products/{id} [get]
func (h *ProductHandler) Get(c echo.Context) error {
	p, err := h.service.GetProduct(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponse(p))
}

type listProductsQuery struct {
	Page   int    `query:"page"  validate:"gte=0"`
	Limit  int    `query:"limit" validate:"gte=0"`
	Search string `query:"search"`
}

// List handles GET /v1/products.
//
// @Summary      List products
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Partial match on sku or name"
// @Param        page    query     int     false  "1-based page"
// @Param        limit   query     int     false  "Page size (default 20, max 100)"
// @Success      200     {object}  productListResponse
// @Router       /v1/products [get]
func (h *ProductHandler) List(c echo.Context) error {
	var q listProductsQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	result, err := h.service.ListProducts(c.Request().Context(), ports.ListProductsInput{
		Search: q.Search,
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		return err
	}

	data := make([]productResponse, 0, len(result.Items))
	for _, p := range result.Items {
		data = append(data, toProductResponse(p))
	}
	return c.JSON(http.StatusOK, productListResponse{
		Data: data,
		Pagination: pagination{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		},
	})
}

// Restock handles POST /v1/products/:id/restock.
//
// @Summary      Add stock to a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string          true  "Product ID"
// @Param        body  body      restockRequest  true  "Units to add"
// @Success      200   {object}  productResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /v1/products/{id}/restock [post]
func (h *ProductHandler) Restock(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req restockRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	p, err := h.service.Restock(c.Request().Context(), actor, c.Param("id"), req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponse(p))
}
