package rewardconfig

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"caremarket-rewards/pkg/errutil"
	"caremarket-rewards/pkg/identity"
	"caremarket-rewards/pkg/server"
)

func RegisterRoutes(r *server.Router, svc *Service) {
	h := &handler{svc: svc}

	configs := r.API.Group("/reward-configs")
	configs.POST("", h.createConfig)
	configs.GET("", h.listConfigs)
	configs.GET("/:id", h.getConfig)
	configs.PUT("/:id", h.updateConfig)
	configs.DELETE("/:id", h.deleteConfig)
	configs.POST("/:id/activate", h.activateConfig)
	configs.POST("/:id/deactivate", h.deactivateConfig)

	seasons := r.API.Group("/seasons")
	seasons.POST("", h.createSeason)
	seasons.GET("", h.listSeasons)
	seasons.GET("/:id", h.getSeason)
	seasons.PUT("/:id", h.updateSeason)
	seasons.DELETE("/:id", h.deleteSeason)
	seasons.POST("/:id/activate", h.activateSeason)
	seasons.POST("/:id/deactivate", h.deactivateSeason)

	r.API.POST("/rewards/calculate", h.calculate)
}

type handler struct {
	svc *Service
}

func principal(c *gin.Context) identity.Identity {
	ident, _ := identity.FromContext(c.Request.Context())
	return ident
}

func (h *handler) createConfig(c *gin.Context) {
	var in ConfigInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	config, err := h.svc.CreateConfig(c.Request.Context(), principal(c), in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, config)
}

func (h *handler) listConfigs(c *gin.Context) {
	configs, err := h.svc.ListConfigs(c.Request.Context(), principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, configs)
}

func (h *handler) getConfig(c *gin.Context) {
	config, err := h.svc.GetConfig(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, config)
}

func (h *handler) updateConfig(c *gin.Context) {
	var in ConfigUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	config, err := h.svc.UpdateConfig(c.Request.Context(), principal(c), c.Param("id"), in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, config)
}

func (h *handler) deleteConfig(c *gin.Context) {
	if err := h.svc.DeleteConfig(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) activateConfig(c *gin.Context) {
	config, err := h.svc.ActivateConfig(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, config)
}

func (h *handler) deactivateConfig(c *gin.Context) {
	config, err := h.svc.DeactivateConfig(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, config)
}

func (h *handler) createSeason(c *gin.Context) {
	var in SeasonInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	season, err := h.svc.CreateSeason(c.Request.Context(), principal(c), in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, season)
}

func (h *handler) listSeasons(c *gin.Context) {
	seasons, err := h.svc.ListSeasons(c.Request.Context(), principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, seasons)
}

func (h *handler) getSeason(c *gin.Context) {
	season, err := h.svc.GetSeason(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, season)
}

func (h *handler) updateSeason(c *gin.Context) {
	var in SeasonUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	season, err := h.svc.UpdateSeason(c.Request.Context(), principal(c), c.Param("id"), in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, season)
}

func (h *handler) deleteSeason(c *gin.Context) {
	if err := h.svc.DeleteSeason(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) activateSeason(c *gin.Context) {
	season, err := h.svc.ActivateSeason(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, season)
}

func (h *handler) deactivateSeason(c *gin.Context) {
	season, err := h.svc.DeactivateSeason(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, season)
}

func (h *handler) calculate(c *gin.Context) {
	var in CalculateRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := h.svc.Calculate(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
