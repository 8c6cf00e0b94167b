package controllers

import (
	"net/http"

	"equipment_loaner/app"
	"equipment_loaner/loans"

	"github.com/gin-gonic/gin"
)

type LookupController struct{ *Srv }

func NewLookupController(s *Srv) *LookupController { return &LookupController{Srv: s} }

func (lc *LookupController) ListCategories(c *gin.Context) {
	cats, err := lc.Engine.ListCategories(c.Request.Context(), app.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"categories": cats})
}

func (lc *LookupController) CreateCategory(c *gin.Context) {
	var in loans.LookupInput
	if !bindJSON(c, &in) {
		return
	}
	cat, err := lc.Engine.CreateCategory(c.Request.Context(), app.CurrentActor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (lc *LookupController) ListLocations(c *gin.Context) {
	locs, err := lc.Engine.ListLocations(c.Request.Context(), app.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"locations": locs})
}

func (lc *LookupController) CreateLocation(c *gin.Context) {
	var in loans.LookupInput
	if !bindJSON(c, &in) {
		return
	}
	loc, err := lc.Engine.CreateLocation(c.Request.Context(), app.CurrentActor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loc)
}
