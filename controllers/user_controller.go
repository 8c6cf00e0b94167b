package controllers

import (
	"net/http"
	"strings"

	"equipment_loaner/app"
	"equipment_loaner/db"
	"equipment_loaner/loans"
	"equipment_loaner/models"

	"github.com/gin-gonic/gin"
)

type UserController struct{ *Srv }

func GetUserController(s *Srv) *UserController { return &UserController{Srv: s} }

// GET /api/users?q=alice&role=&active=&page=1&size=20
func (uc *UserController) ListUsers(c *gin.Context) {
	page, size := pageParams(c)
	active, err := optionalBool(c, "active")
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := uc.Engine.ListUsers(c.Request.Context(), app.CurrentActor(c), db.UserFilter{
		Q:      strings.TrimSpace(c.Query("q")),
		Role:   models.Role(c.Query("role")),
		Active: active,
		Page:   page,
		Size:   size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"total": res.Total,
		"users": res.Users,
	})
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	user, err := uc.Engine.GetUser(c.Request.Context(), app.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": user})
}

// POST /api/users
// staff 只能创建 borrower
func (uc *UserController) CreateUser(c *gin.Context) {
	var in loans.UserInput
	if !bindJSON(c, &in) {
		return
	}
	u, err := uc.Engine.CreateUser(c.Request.Context(), app.CurrentActor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"user": u})
}

// PUT /api/users/:id
func (uc *UserController) UpdateUser(c *gin.Context) {
	var p loans.UserPatch
	if !bindJSON(c, &p) {
		return
	}
	u, err := uc.Engine.UpdateUser(c.Request.Context(), app.CurrentActor(c), c.Param("id"), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// DELETE /api/users/:id
// 只停用，不物理删除；同时撤销该用户的所有登录会话
func (uc *UserController) DeleteUser(c *gin.Context) {
	if err := uc.Engine.DeactivateUser(c.Request.Context(), app.CurrentActor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
