package loans

import (
	"context"
	"strings"

	"equipment_loaner/apperr"
	"equipment_loaner/db"
	"equipment_loaner/models"
	"equipment_loaner/policy"

	"github.com/google/uuid"
)

const msgUserTaken = "username, email or external id already in use"

type UserInput struct {
	Username   string      `json:"username" validate:"required,min=3,max=64"`
	Password   string      `json:"password" validate:"omitempty,min=8,max=128"`
	Name       string      `json:"name" validate:"required,max=255"`
	Email      string      `json:"email" validate:"required,email"`
	Role       models.Role `json:"role" validate:"omitempty,role"`
	ExternalID *string     `json:"externalId" validate:"omitempty,max=64"`
	Phone      string      `json:"phone" validate:"max=40"`
	UserType   string      `json:"userType" validate:"omitempty,user_type"`
}

type UserPatch struct {
	Name       *string      `json:"name" validate:"omitempty,min=1,max=255"`
	Email      *string      `json:"email" validate:"omitempty,email"`
	Role       *models.Role `json:"role" validate:"omitempty,role"`
	Password   *string      `json:"password" validate:"omitempty,min=8,max=128"`
	ExternalID *string      `json:"externalId" validate:"omitempty,max=64"`
	Phone      *string      `json:"phone" validate:"omitempty,max=40"`
	UserType   *string      `json:"userType" validate:"omitempty,user_type"`
	Active     *bool        `json:"active"`
}

// CreateUser registers an account. Admins may create any role; staff may
// only create borrowers.
func (e *Engine) CreateUser(ctx context.Context, actor policy.Actor, in UserInput) (*models.User, error) {
	if err := policy.Authorize(actor, policy.OpCreateBorrower); err != nil {
		return nil, err
	}
	if err := e.check(in); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = models.RoleBorrower
	}
	if in.Role != models.RoleBorrower {
		if err := policy.Authorize(actor, policy.OpManageUsers); err != nil {
			return nil, apperr.Forbidden("only admins may create " + string(in.Role) + " accounts")
		}
	}

	u := &models.User{
		ID:         uuid.NewString(),
		Username:   strings.TrimSpace(in.Username),
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Role:       in.Role,
		Active:     true,
		ExternalID: trimOptional(in.ExternalID),
		Phone:      strings.TrimSpace(in.Phone),
		UserType:   in.UserType,
	}
	if in.Password != "" {
		hash, err := e.hasher.Hash(in.Password)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		u.PasswordHash = hash
	}

	if err := e.repo.CreateUser(ctx, u); err != nil {
		return nil, e.finish(persistErr(err, msgUserTaken), "user create", "username", in.Username, "actor_id", actor.ID)
	}
	return u, e.finish(nil, "user created", "user_id", u.ID, "role", u.Role, "actor_id", actor.ID)
}

// UpdateUser edits an account. Setting active=false follows the same rules
// as DeactivateUser.
func (e *Engine) UpdateUser(ctx context.Context, actor policy.Actor, userID string, p UserPatch) (*models.User, error) {
	if err := policy.Authorize(actor, policy.OpManageUsers); err != nil {
		return nil, err
	}
	if err := e.check(p); err != nil {
		return nil, err
	}
	if err := knownID(userID, msgUserNotFound); err != nil {
		return nil, err
	}
	if userID == actor.ID {
		if p.Active != nil && !*p.Active {
			return nil, apperr.Conflict("you cannot deactivate your own account")
		}
		if p.Role != nil && *p.Role != actor.Role {
			return nil, apperr.Conflict("you cannot change your own role")
		}
	}

	fields := map[string]any{}
	if p.Name != nil {
		fields["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		fields["email"] = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Role != nil {
		fields["role"] = *p.Role
	}
	if p.ExternalID != nil {
		fields["external_id"] = trimOptional(p.ExternalID)
	}
	if p.Phone != nil {
		fields["phone"] = strings.TrimSpace(*p.Phone)
	}
	if p.UserType != nil {
		fields["user_type"] = *p.UserType
	}
	if p.Active != nil {
		fields["active"] = *p.Active
	}
	if p.Password != nil {
		hash, err := e.hasher.Hash(*p.Password)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		fields["password_hash"] = hash
	}

	var out *models.User
	err := e.repo.InTx(ctx, func(tx *db.Repo) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return notFound(err, msgUserNotFound)
		}
		if p.Active != nil && !*p.Active && u.Active {
			if err := checkDeactivatable(ctx, tx, u.ID); err != nil {
				return err
			}
		}
		if len(fields) > 0 {
			if err := tx.UpdateUserFields(ctx, u.ID, fields); err != nil {
				return persistErr(err, msgUserTaken)
			}
		}
		out, err = tx.FindUserByID(ctx, u.ID)
		return apperr.Internal(err)
	})
	if err != nil {
		return nil, e.finish(err, "user update", "user_id", userID, "actor_id", actor.ID)
	}
	if !out.Active {
		e.revokeSessions(ctx, out.ID)
	}
	return out, e.finish(nil, "user updated", "user_id", userID, "actor_id", actor.ID)
}

// DeactivateUser soft-deletes an account. Users are never removed.
func (e *Engine) DeactivateUser(ctx context.Context, actor policy.Actor, userID string) error {
	if err := policy.Authorize(actor, policy.OpManageUsers); err != nil {
		return err
	}
	if userID == actor.ID {
		return apperr.Conflict("you cannot deactivate your own account")
	}
	if err := knownID(userID, msgUserNotFound); err != nil {
		return err
	}

	err := e.repo.InTx(ctx, func(tx *db.Repo) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return notFound(err, msgUserNotFound)
		}
		if !u.Active {
			return nil
		}
		if err := checkDeactivatable(ctx, tx, u.ID); err != nil {
			return err
		}
		return apperr.Internal(tx.SetUserActive(ctx, u.ID, false))
	})
	if err != nil {
		return e.finish(err, "user deactivate", "user_id", userID, "actor_id", actor.ID)
	}
	e.revokeSessions(ctx, userID)
	return e.finish(nil, "user deactivated", "user_id", userID, "actor_id", actor.ID)
}

func checkDeactivatable(ctx context.Context, tx *db.Repo, userID string) error {
	n, err := tx.CountOpenLoansForUser(ctx, userID)
	if err != nil {
		return apperr.Internal(err)
	}
	if n > 0 {
		return apperr.Conflict("user has open loans")
	}
	return nil
}

// revokeSessions runs after commit; a failure is logged, the deactivation stands.
func (e *Engine) revokeSessions(ctx context.Context, userID string) {
	if e.sessions == nil {
		return
	}
	if err := e.sessions.RevokeUser(ctx, userID); err != nil {
		e.logger.Warn("revoke sessions failed", "user_id", userID, "error", err)
	}
}
