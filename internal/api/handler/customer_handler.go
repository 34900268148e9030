package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bizdesk/backoffice/internal/core/ports"
)

// CustomerHandler exposes customer reads and employee delegation.
type CustomerHandler struct {
	service ports.CustomerService
}

func NewCustomerHandler(service ports.CustomerService) *CustomerHandler {
	return &CustomerHandler{service: service}
}

// Get handles GET /v1/customers/:id.
//
// @Summary      Get a customer
// @Tags         customers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Customer ID"
// @Success      200  {object}  customerResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/customers/{id} [get]
func (h *CustomerHandler) Get(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	detail, err := h.service.GetCustomer(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customerResponse{
		userResponse: *toUserResponse(detail.Customer),
		AssignedToID: detail.AssignedToID,
	})
}

// List handles GET /v1/customers.
//
// @Summary      List the customers visible to the caller
// @Tags         customers
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "1-based page"
// @Param        limit  query     int  false  "Page size (default 20, max 100)"
// @Success      200    {object}  customerListResponse
// @Router       /v1/customers [get]
func (h *CustomerHandler) List(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var q listQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	result, err := h.service.ListCustomers(c.Request().Context(), ports.ListCustomersInput{
		Actor: actor,
		Page:  q.Page,
		Limit: q.Limit,
	})
	if err != nil {
		return err
	}

	data := make([]userResponse, 0, len(result.Items))
	for _, u := range result.Items {
		data = append(data, *toUserResponse(u))
	}
	return c.JSON(http.StatusOK, customerListResponse{
		Data: data,
		Pagination: pagination{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		},
	})
}

// Assign handles PUT /v1/customers/:id/assignment.
//
// @Summary      Delegate a customer to an employee
// @Description  Replaces any existing assignment of the customer.
// @Tags         customers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string         true  "Customer ID"
// @Param        body  body      assignRequest  true  "Employee"
// @Success      200   {object}  assignmentResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /v1/customers/{id}/assignment [put]
func (h *CustomerHandler) Assign(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	a, err := h.service.AssignCustomer(c.Request().Context(), actor, c.Param("id"), req.EmployeeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, assignmentResponse{
		CustomerID: a.CustomerID,
		EmployeeID: a.EmployeeID,
		AssignedAt: a.AssignedAt,
	})
}

// Unassign handles DELETE /v1/customers/:id/assignment.
//
// @Summary      Remove a customer's delegation
// @Tags         customers
// @Security     BearerAuth
// @Param        id   path  string  true  "Customer ID"
// @Success      204
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/customers/{id}/assignment [delete]
func (h *CustomerHandler) Unassign(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	if err := h.service.UnassignCustomer(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
