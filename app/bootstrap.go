// app/bootstrap.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"equipment_loaner/config"
	"equipment_loaner/db"
	"equipment_loaner/models"

	"github.com/google/uuid"
)

type passwordHasher interface {
	Hash(pw string) (string, error)
}

// BootstrapFirstAdmin creates the admin account named in the environment when
// no active admin exists yet. It reports whether an account was created.
func BootstrapFirstAdmin(ctx context.Context, cfg config.Config, repo *db.Repo, hasher passwordHasher, logger *slog.Logger) (bool, error) {
	username := strings.TrimSpace(cfg.BootstrapAdminUsername)
	if username == "" || cfg.BootstrapAdminPassword == "" {
		return false, nil
	}
	n, err := repo.CountAdmins(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil // 已经有管理员，跳过
	}

	hash, err := hasher.Hash(cfg.BootstrapAdminPassword)
	if err != nil {
		return false, err
	}
	email := strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminEmail))
	if email == "" {
		email = username + "@localhost"
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Name:         username,
		Email:        email,
		Role:         models.RoleAdmin,
		Active:       true,
		UserType:     "admin",
	}
	if err := repo.CreateUser(ctx, u); err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	logger.Info("[BOOTSTRAP] created first admin", "username", username, "user_id", u.ID)
	return true, nil
}
