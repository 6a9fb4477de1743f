package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pkruczek/spizarka-backend/api/responses"
	"github.com/pkruczek/spizarka-backend/api/validators"
	"github.com/pkruczek/spizarka-backend/internal/inventory"
	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	pkgerrors "github.com/pkruczek/spizarka-backend/pkg/errors"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
)

type inventoryItemResponse struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName *string         `json:"product_name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type inventoryHistoryResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	Change      decimal.Decimal `json:"change"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
	ChangeType  string          `json:"change_type"`
	Source      string          `json:"source"`
	SourceID    *uuid.UUID      `json:"source_id,omitempty"`
	Note        *string         `json:"note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toItemResponse(item *models.InventoryItem) inventoryItemResponse {
	resp := inventoryItemResponse{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Unit:      item.Unit,
		UpdatedAt: item.UpdatedAt,
	}
	if item.Product != nil {
		resp.ProductName = &item.Product.Name
	}
	return resp
}

func toItemResponses(items []models.InventoryItem) []inventoryItemResponse {
	resps := make([]inventoryItemResponse, 0, len(items))
	for i := range items {
		resps = append(resps, toItemResponse(&items[i]))
	}
	return resps
}

func toHistoryResponses(entries []models.InventoryHistory) []inventoryHistoryResponse {
	resps := make([]inventoryHistoryResponse, 0, len(entries))
	for _, e := range entries {
		resps = append(resps, inventoryHistoryResponse{
			ID:          e.ID,
			ProductID:   e.ProductID,
			Change:      e.Change,
			NewQuantity: e.NewQuantity,
			ChangeType:  string(e.ChangeType),
			Source:      e.Source,
			SourceID:    e.SourceID,
			Note:        e.Note,
			CreatedAt:   e.CreatedAt,
		})
	}
	return resps
}

func ListInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toItemResponses(items))
	}
}

func LowStockInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.LowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toItemResponses(items))
	}
}

func InventorySummary(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type consumeInventoryRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
	Note     *string         `json:"note"`
}

// ConsumeInventory removes stock, e.g. after cooking. The service refuses to
// take the quantity below zero.
func ConsumeInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload consumeInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Consume(r.Context(), productID, payload.Quantity, payload.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toItemResponse(item))
	}
}

type adjustInventoryRequest struct {
	Delta decimal.Decimal `json:"delta" validate:"required"`
	Note  *string         `json:"note"`
}

// AdjustInventory applies a signed correction to the stock level.
func AdjustInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Adjust(r.Context(), productID, payload.Delta, payload.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toItemResponse(item))
	}
}

func InventoryHistory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.History(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toHistoryResponses(history))
	}
}

func productIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "productID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return id, nil
}
