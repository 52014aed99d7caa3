package rewards

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"caremarket-rewards/pkg/db/pagination"
	"caremarket-rewards/pkg/errutil"
	"caremarket-rewards/pkg/identity"
	"caremarket-rewards/pkg/server"
)

func RegisterRoutes(r *server.Router, svc *Service) {
	h := &handler{svc: svc}

	r.API.POST("/rewards/points", h.recordPoints)
	r.API.GET("/rewards/patient/:patient_id", h.patientRewards)
	r.API.POST("/rewards/card", h.requestCard)

	r.Public.GET("/api/rewards/info", h.info)
	r.Public.GET("/api/rewards/partners", h.partners)
}

type handler struct {
	svc *Service
}

func (h *handler) recordPoints(c *gin.Context) {
	ident, _ := identity.FromContext(c.Request.Context())

	var in RecordPointsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	entry, err := h.svc.RecordPoints(c.Request.Context(), ident, in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (h *handler) patientRewards(c *gin.Context) {
	ident, _ := identity.FromContext(c.Request.Context())

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination parameters", err))
		return
	}

	rewards, err := h.svc.GetBalance(c.Request.Context(), ident, c.Param("patient_id"), page)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rewards)
}

func (h *handler) requestCard(c *gin.Context) {
	ident, _ := identity.FromContext(c.Request.Context())

	card, err := h.svc.RequestCard(c.Request.Context(), ident)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, card)
}

func (h *handler) info(c *gin.Context) {
	info, err := h.svc.Info(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (h *handler) partners(c *gin.Context) {
	shops, err := h.svc.ListPartnerShops(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, shops)
}
