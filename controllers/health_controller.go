package controllers

import (
	"context"
	"net/http"
	"time"

	"equipment_loaner/app"
	"equipment_loaner/db"

	"github.com/gin-gonic/gin"
)

// GET /healthz
func (s *Srv) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := app.H{"ok": true, "database": "ok", "redis": "ok"}
	status := http.StatusOK
	if err := db.Ping(ctx, s.DB); err != nil {
		body["ok"], body["database"] = false, err.Error()
		status = http.StatusServiceUnavailable
	} else if n, err := s.Repo.CountUsers(ctx); err == nil {
		body["users"] = n
	}
	if err := s.RDB.Ping(ctx).Err(); err != nil {
		body["ok"], body["redis"] = false, err.Error()
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, body)
}
