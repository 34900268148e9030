package handler

import (
	"github.com/bizdesk/backoffice/internal/core/domain"
)

// --- Domain → Response ---

func toUserResponse(u *domain.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Role:        string(u.Role),
		CreatedByID: domain.Deref(u.CreatedByID),
		CreatedAt:   u.CreatedAt,
	}
}

func toOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		CustomerID:   o.CustomerID,
		CreatedByID:  o.CreatedByID,
		AssignedToID: domain.Deref(o.AssignedToID),
		Status:       string(o.Status),
		Total:        o.Total,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		Links: orderLinks{
			Self:     "/v1/orders/" + o.ID,
			Customer: "/v1/customers/" + o.CustomerID,
		},
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		})
	}
	return resp
}

func toProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		SKU:       p.SKU,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
