package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Health serves the liveness and readiness probes.
type Health struct {
	DB *gorm.DB
}

// Live handles GET /health. It only reports that the process serves HTTP.
func (h *Health) Live(c *gin.Context) {
	ok(c, http.StatusOK, StatusResponse{Status: "ok"})
}

// Ready handles GET /ready and pings the database.
func (h *Health) Ready(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "database unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "database unavailable")
		return
	}
	ok(c, http.StatusOK, StatusResponse{Status: "ready"})
}
