package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oppa-kitchen/storefront/internal/menu"
	"go.uber.org/zap"
)

// Catalog lists menu items. Satisfied by *backend.Client.
type Catalog interface {
	Products(ctx context.Context) ([]menu.Item, error)
}

type MenuHandler struct {
	catalog Catalog
	log     *zap.Logger
}

func NewMenuHandler(catalog Catalog, log *zap.Logger) *MenuHandler {
	return &MenuHandler{catalog: catalog, log: log}
}

func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type menuItemResponse struct {
	ID           menu.ID `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        string  `json:"price"`
	Category     string  `json:"category"`
	Image        string  `json:"image"`
	IsSpicy      bool    `json:"is_spicy"`
	IsVegetarian bool    `json:"is_vegetarian"`
}

func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.Products(r.Context())
	if err != nil {
		h.log.Warn("fetch menu", zap.Error(err))
		writeBackendError(w, err)
		return
	}

	data := make([]menuItemResponse, 0, len(items))
	for _, it := range items {
		data = append(data, menuItemResponse{
			ID:           it.ID,
			Name:         it.Name,
			Description:  it.Description,
			Price:        it.Price.StringFixed(2),
			Category:     it.Category,
			Image:        it.Image.Resolve(),
			IsSpicy:      it.IsSpicy,
			IsVegetarian: it.IsVegetarian,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}
