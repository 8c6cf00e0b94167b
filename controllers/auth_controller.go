package controllers

import (
	"net/http"
	"strings"

	"equipment_loaner/app"
	"equipment_loaner/apperr"

	"github.com/gin-gonic/gin"
)

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
func (s *Srv) Login(c *gin.Context) {
	var req loginReq
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	u, err := s.Repo.FindUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil || !u.Active || s.Hasher.Compare(u.PasswordHash, req.Password) != nil {
		respondError(c, apperr.Unauthenticated("invalid username or password"))
		return
	}

	res, err := s.issueSession(ctx, c.Writer, u, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/auth/logout
func (s *Srv) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		_ = s.AppSess.Delete(c.Request.Context(), ck.Value)
	}
	s.clearAppCookie(c.Writer)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/auth/me
func (s *Srv) Me(c *gin.Context) {
	actor := app.CurrentActor(c)
	u, err := s.Engine.GetUser(c.Request.Context(), actor, actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	credCount, _ := s.Repo.CountCredentials(c.Request.Context(), u.ID)
	c.JSON(http.StatusOK, app.H{"user": u, "passkeys": credCount})
}
