package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"caremarket-rewards/pkg/errutil"
	"caremarket-rewards/pkg/identity"
	"caremarket-rewards/pkg/server"
)

func RegisterRoutes(r *server.Router, svc *Service) {
	h := &handler{svc: svc}

	products := r.API.Group("/products")
	products.POST("", h.create)
	products.GET("/:id", h.get)
}

type handler struct {
	svc *Service
}

func (h *handler) create(c *gin.Context) {
	ident, _ := identity.FromContext(c.Request.Context())

	var in ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	product, err := h.svc.CreateProduct(c.Request.Context(), ident, in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *handler) get(c *gin.Context) {
	product, err := h.svc.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, product)
}
