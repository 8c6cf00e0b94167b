// Package loans owns every transition that touches a loan and its item
// together. Handlers pass the resolved actor in; the engine authorizes,
// validates, and applies all changes inside one database transaction.
package loans

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"equipment_loaner/apperr"
	"equipment_loaner/auth"
	"equipment_loaner/db"
	"equipment_loaner/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Logger is the subset of *slog.Logger the engine uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type PasswordHasher interface {
	Hash(pw string) (string, error)
}

// SessionRevoker drops every live session of a user.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID string) error
}

type Engine struct {
	repo     *db.Repo
	logger   Logger
	now      func() time.Time
	validate *validator.Validate
	hasher   PasswordHasher
	sessions SessionRevoker
}

type Option func(*Engine)

func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source; "today" is its UTC calendar date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithHasher(h PasswordHasher) Option {
	return func(e *Engine) { e.hasher = h }
}

func WithSessionRevoker(r SessionRevoker) Option {
	return func(e *Engine) { e.sessions = r }
}

func WithValidator(v *validator.Validate) Option {
	return func(e *Engine) { e.validate = v }
}

func NewEngine(repo *db.Repo, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
		hasher: auth.NewBcryptHasher(0),
	}
	for _, o := range opts {
		o(e)
	}
	if e.validate == nil {
		e.validate = newValidator()
	}
	return e
}

// Today is the current UTC calendar date per the engine clock.
func (e *Engine) Today() time.Time { return models.Day(e.now()) }

func (e *Engine) check(in any) error {
	if err := e.validate.Struct(in); err != nil {
		return ValidationError(err)
	}
	return nil
}

// knownID rejects ids that cannot name a row. Malformed ids read as missing.
func knownID(id, msg string) error {
	if uuid.Validate(id) != nil {
		return apperr.NotFound(msg)
	}
	return nil
}

// notFound maps a missing row to a domain NotFound; anything else is internal.
func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(msg)
	}
	return apperr.Internal(err)
}

// persistErr maps write failures: unique violations become Conflict.
func persistErr(err error, conflictMsg string) error {
	if db.IsDuplicate(err) {
		return apperr.Conflict(conflictMsg)
	}
	return apperr.Internal(err)
}

// finish logs the outcome of a mutating operation.
func (e *Engine) finish(err error, msg string, args ...any) error {
	if err == nil {
		e.logger.Info(msg, args...)
		return nil
	}
	if apperr.KindOf(err) == apperr.KindInternal {
		e.logger.Error(msg+" failed", append(args, "error", err)...)
	}
	return err
}
