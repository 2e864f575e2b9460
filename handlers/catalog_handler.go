package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/catalog"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// ModelCatalog defines the catalog lookups exposed over HTTP
type ModelCatalog interface {
	Entries() []catalog.Entry
	Lookup(aliasOrName string) (*models.ModelDescriptor, bool)
}

// CatalogHandler serves the model catalog
type CatalogHandler struct {
	catalog ModelCatalog
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(c ModelCatalog, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: c,
		logger:  logger,
	}
}

// HandleList handles GET /api/v1/models
// Optional query parameters: provider, capability
func (h *CatalogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	provider := models.Provider(r.URL.Query().Get("provider"))
	capability := r.URL.Query().Get("capability")

	if provider != "" && !provider.Valid() {
		HandleServiceError(w, services.ErrInvalidProvider.With(nil).WithDetail("provider", string(provider)), h.logger)
		return
	}

	entries := h.catalog.Entries()
	filtered := make([]catalog.Entry, 0, len(entries))
	for _, e := range entries {
		if provider != "" && e.Model.Provider != provider {
			continue
		}
		if capability != "" && !e.Model.HasCapability(capability) {
			continue
		}
		filtered = append(filtered, e)
	}

	if err := utils.WriteOK(w, filtered); err != nil {
		h.logger.Error("failed to write catalog response", zap.Error(err))
	}
}

// HandleGet handles GET /api/v1/models/{alias}
func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")

	model, ok := h.catalog.Lookup(alias)
	if !ok {
		HandleServiceError(w, services.ErrModelNotFound.With(nil).WithDetail("alias", alias), h.logger)
		return
	}

	if err := utils.WriteOK(w, model); err != nil {
		h.logger.Error("failed to write model response", zap.Error(err))
	}
}
