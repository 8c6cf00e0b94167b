package controllers

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"equipment_loaner/app"
	"equipment_loaner/apperr"
	"equipment_loaner/loans"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// respondError writes {"error","code"[,"fields"]} with the status of the
// error kind. Internal details stay in the gin error log.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		_ = c.Error(err)
	}
	body := app.H{"error": apperr.PublicMessage(err), "code": kind}
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), body)
}

func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return loans.ValidationError(err)
	}
	return apperr.Validation("invalid request body", nil)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, bindError(err))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, bindError(err))
		return false
	}
	return true
}

// parseDay accepts YYYY-MM-DD or RFC 3339.
func parseDay(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Validation("invalid date", map[string]string{field: "date"})
}

func parseOptionalDay(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseDay(field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ?page=&size=
func pageParams(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("size", "50"))
	return page, size
}

func optionalUint(c *gin.Context, key string) (*uint, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, apperr.Validation("invalid "+key, map[string]string{key: "number"})
	}
	v := uint(n)
	return &v, nil
}

func optionalBool(c *gin.Context, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validation("invalid "+key, map[string]string{key: "boolean"})
	}
	return &b, nil
}
