package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

// OrderHandler handles HTTP requests for order operations.
type OrderHandler struct {
	service ports.OrderService
}

func NewOrderHandler(service ports.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// Create handles POST /v1/orders.
//
// @Summary      Create an order
// @Description  Pending orders reserve stock for every line; drafts reserve nothing.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string              false  "Replays the order created with the same key"
// @Param        body             body      createOrderRequest  true   "Order lines"
// @Success      201              {object}  orderResponse
// @Success      200              {object}  orderResponse  "Replayed by Idempotency-Key"
// @Failure      400              {object}  ErrorResponse
// @Failure      403              {object}  ErrorResponse
// @Failure      409              {object}  ErrorResponse
// @Router       /v1/orders [post]
func (h *OrderHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req createOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	items := make([]ports.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ports.OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	result, err := h.service.CreateOrder(c.Request().Context(), ports.CreateOrderInput{
		Actor:          actor,
		Items:          items,
		Status:         domain.OrderStatus(req.Status),
		AssignedToID:   req.AssignedToID,
		CustomerID:     req.CustomerID,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
	}
	return c.JSON(status, toOrderResponse(result.Order))
}

// Get handles GET /v1/orders/:id.
//
// @Summary      Get an order
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  orderResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/orders/{id} [get]
func (h *OrderHandler) Get(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	order, err := h.service.GetOrder(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

// Echo's binder cannot set fields promoted through an unexported embedded
// struct, so paging is declared here instead of embedding listQuery.
type listOrdersQuery struct {
	Page       int    `query:"page"  validate:"gte=0"`
	Limit      int    `query:"limit" validate:"gte=0"`
	Status     string `query:"status" validate:"omitempty,oneof=draft pending completed cancelled"`
	CustomerID string `query:"customer_id"`
}

// List handles GET /v1/orders.
//
// @Summary      List the orders visible to the caller
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        status       query     string  false  "draft, pending, completed or cancelled"
// @Param        customer_id  query     string  false  "Only orders of this customer"
// @Param        page         query     int     false  "1-based page"
// @Param        limit        query     int     false  "Page size (default 20, max 100)"
// @Success      200          {object}  orderListResponse
// @Failure      400          {object}  ErrorResponse
// @Router       /v1/orders [get]
func (h *OrderHandler) List(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var q listOrdersQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	result, err := h.service.ListOrders(c.Request().Context(), ports.ListOrdersInput{
		Actor:      actor,
		Status:     q.Status,
		CustomerID: q.CustomerID,
		Page:       q.Page,
		Limit:      q.Limit,
	})
	if err != nil {
		return err
	}

	data := make([]orderResponse, 0, len(result.Items))
	for _, o := range result.Items {
		data = append(data, toOrderResponse(o))
	}
	return c.JSON(http.StatusOK, orderListResponse{
		Data: data,
		Pagination: pagination{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		},
	})
}

// Transition handles PATCH /v1/orders/:id/status.
//
// @Summary      Change an order's status
// @Description  draft→pending reserves stock; cancelling a pending order releases it.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Order ID"
// @Param        body  body      transitionRequest  true  "Target status"
// @Success      200   {object}  orderResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Router       /v1/orders/{id}/status [patch]
func (h *OrderHandler) Transition(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	order, err := h.service.TransitionOrder(c.Request().Context(), actor, c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

// Reassign handles PATCH /v1/orders/:id/assignee.
//
// @Summary      Reassign an order to another employee
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string           true  "Order ID"
// @Param        body  body      reassignRequest  true  "New assignee"
// @Success      200   {object}  orderResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Router       /v1/orders/{id}/assignee [patch]
func (h *OrderHandler) Reassign(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req reassignRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	order, err := h.service.ReassignOrder(c.Request().Context(), actor, c.Param("id"), req.AssignedToID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

// Delete handles DELETE /v1/orders/:id.
//
// @Summary      Delete an order
// @Description  Stock held by the order is released.
// @Tags         orders
// @Security     BearerAuth
// @Param        id   path  string  true  "Order ID"
// @Success      204
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/orders/{id} [delete]
func (h *OrderHandler) Delete(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteOrder(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
