package app

import (
	"net/http"
	"strings"

	"equipment_loaner/apperr"
	"equipment_loaner/auth"
	"equipment_loaner/db"
	"equipment_loaner/models"
	"equipment_loaner/policy"
	"equipment_loaner/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "app_session"

const (
	ctxUserID   = "userID"
	ctxRole     = "role"
	ctxUsername = "username"
)

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": msg, "code": apperr.KindUnauthenticated})
}

func bearerToken(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return "", false
	}
	return strings.TrimSpace(raw), true
}

// AuthRequired resolves the caller from a Bearer token or the app_session
// cookie. The account must still exist and be active; its role is read from
// the database on every request.
func AuthRequired(appSess *session.AppSessionStore, tokens *auth.TokenService, repo *db.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var uid, sid string
		if raw, ok := bearerToken(c.GetHeader("Authorization")); ok {
			claims, err := tokens.Parse(raw)
			if err != nil {
				abortUnauthorized(c, "invalid token")
				return
			}
			uid = claims.UserID
		} else {
			ck, err := c.Request.Cookie(AppSessionCookie)
			if err != nil || ck.Value == "" {
				abortUnauthorized(c, "unauthorized")
				return
			}
			as, err := appSess.Get(ctx, ck.Value)
			if err != nil {
				abortUnauthorized(c, "invalid session")
				return
			}
			uid, sid = as.UserID, ck.Value
		}

		// 确认用户仍存在且未停用（只查一次）
		u, err := repo.FindUserByID(ctx, uid)
		if err != nil || !u.Active {
			if sid != "" {
				_ = appSess.Delete(ctx, sid)
			}
			abortUnauthorized(c, "unauthorized")
			return
		}
		c.Set(ctxUserID, u.ID)
		c.Set(ctxRole, string(u.Role))
		c.Set(ctxUsername, u.Username)

		c.Next()
	}
}

// CurrentActor returns the caller resolved by AuthRequired. Outside of it the
// actor is empty and every policy check fails with Unauthenticated.
func CurrentActor(c *gin.Context) policy.Actor {
	return policy.Actor{
		ID:   c.GetString(ctxUserID),
		Role: models.Role(c.GetString(ctxRole)),
	}
}
