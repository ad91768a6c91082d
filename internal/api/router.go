// Package api exposes the HTTP surface: the platform bridge websocket, a
// small read-only REST view for dashboards, and the operational endpoints.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seiyelan/raidhelper/internal/chat"
	"github.com/seiyelan/raidhelper/internal/services"
	apperrors "github.com/seiyelan/raidhelper/pkg/errors"
	"github.com/seiyelan/raidhelper/pkg/response"
)

// Deps carries what the router needs.
type Deps struct {
	Gateway    *chat.Gateway
	Activities *services.ActivityService
	Signups    *services.SignupService
}

// NewRouter assembles the gin engine.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Gateway == nil || deps.Activities == nil || deps.Signups == nil {
		return nil, errors.New("api: gateway and services are required")
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The chat platform adapter connects here and relays messages both ways.
	engine.GET("/gateway", func(c *gin.Context) {
		deps.Gateway.Serve(c.Writer, c.Request)
	})

	h := &handlers{activities: deps.Activities, signups: deps.Signups}
	v1 := engine.Group("/api/v1")
	{
		v1.GET("/groups/:group/activities", h.listActivities)
		v1.GET("/activities/:id", h.activityDetail)
		v1.GET("/activities/:id/export", h.exportRoster)
	}

	return engine, nil
}

type handlers struct {
	activities *services.ActivityService
	signups    *services.SignupService
}

func (h *handlers) listActivities(c *gin.Context) {
	activities, err := h.activities.Current(c.Request.Context(), c.Param("group"))
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "failed to list activities"))
		return
	}
	response.Success(c, http.StatusOK, activities)
}

func (h *handlers) activityDetail(c *gin.Context) {
	detail, err := h.activities.Detail(c.Request.Context(), c.Param("id"))
	if errors.Is(err, services.ErrActivityNotFound) {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "failed to load activity"))
		return
	}
	response.Success(c, http.StatusOK, detail)
}

func (h *handlers) exportRoster(c *gin.Context) {
	out, err := h.signups.ExportCSV(c.Request.Context(), c.Param("id"))
	if errors.Is(err, services.ErrActivityNotFound) {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "failed to export roster"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="roster.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
}
