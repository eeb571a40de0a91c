package httpserver

import (
	"log"
	"net/http"

	"garment-storefront/internal/domain"
	"garment-storefront/internal/orderapi"
	"github.com/gin-gonic/gin"
)

type productHandlers struct {
	svc    catalogService
	logger *log.Logger
}

func (h *productHandlers) list(c *gin.Context) {
	products, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, orderapi.ProductListResponse{Products: products})
}

func (h *productHandlers) get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("productId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
