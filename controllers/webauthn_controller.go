// controllers/webauthn_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"equipment_loaner/app"
	"equipment_loaner/apperr"
	"equipment_loaner/models"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

func registrationOptions() []webauthn.RegistrationOption {
	return []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
		}),
	}
}

// ===== 添加新凭据（已登录） =====

func (s *Srv) BeginAddCredential(c *gin.Context) {
	actor := app.CurrentActor(c)
	ctx, cancel := context.WithTimeout(c, 3*time.Second)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, actor.ID)
	if err != nil {
		respondError(c, apperr.Unauthenticated("unauthorized"))
		return
	}

	opts, sd, err := s.WA.BeginRegistration(wUser, registrationOptions()...)
	if err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	if err := s.Sess.SaveReg(ctx, wUser.user.ID, sd); err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, app.H{"opts": opts})
}

func (s *Srv) FinishAddCredential(c *gin.Context) {
	actor := app.CurrentActor(c)
	ctx, cancel := context.WithTimeout(c, 3*time.Second)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, actor.ID)
	if err != nil {
		respondError(c, apperr.Unauthenticated("unauthorized"))
		return
	}
	sd, err := s.Sess.TakeReg(ctx, wUser.user.ID)
	if err != nil {
		respondError(c, apperr.Validation("passkey ceremony expired or invalid", nil))
		return
	}

	cred, err := s.WA.FinishRegistration(wUser, *sd, c.Request)
	if err != nil {
		respondError(c, apperr.Validation(err.Error(), nil))
		return
	}

	if err := s.Repo.AddCredential(ctx, &models.Credential{
		ID:              uuid.NewString(),
		UserID:          wUser.user.ID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}); err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// ===== 登录 =====

type loginBeginReq struct {
	Username     string `json:"username"`
	Discoverable bool   `json:"discoverable"`
}
type loginBeginResp struct {
	Options   *protocol.CredentialAssertion `json:"options"`
	SessionID string                        `json:"sessionId"`
}

func (s *Srv) BeginLogin(c *gin.Context) {
	var req loginBeginReq
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(c, 3*time.Second)
	defer cancel()

	var (
		opts *protocol.CredentialAssertion
		sd   *webauthn.SessionData
		err  error
	)
	if req.Discoverable {
		opts, sd, err = s.WA.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationRequired))
	} else {
		wUser, err2 := s.loadWAUserByUsername(ctx, req.Username)
		if err2 != nil || !wUser.user.Active {
			respondError(c, apperr.NotFound("user not found"))
			return
		}
		opts, sd, err = s.WA.BeginLogin(wUser, webauthn.WithUserVerification(protocol.VerificationRequired))
	}
	if err != nil {
		respondError(c, apperr.Validation(err.Error(), nil))
		return
	}

	sid := uuid.NewString()
	if err := s.Sess.SaveAuth(ctx, sid, sd); err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, loginBeginResp{Options: opts, SessionID: sid})
}

func (s *Srv) FinishLogin(c *gin.Context) {
	sid := c.Query("sessionId")
	if sid == "" {
		respondError(c, apperr.Validation("missing sessionId", map[string]string{"sessionId": "required"}))
		return
	}
	ip, ua := c.ClientIP(), c.Request.UserAgent()

	ctx, cancel := context.WithTimeout(c, 3*time.Second)
	defer cancel()
	sd, err := s.Sess.TakeAuth(ctx, sid)
	if err != nil {
		respondError(c, apperr.Validation("passkey ceremony expired or invalid", nil))
		return
	}

	var (
		user *models.User
		cred *webauthn.Credential
	)
	if username := c.Query("username"); username != "" {
		wUser, err := s.loadWAUserByUsername(ctx, username)
		if err != nil {
			respondError(c, apperr.NotFound("user not found"))
			return
		}
		cred, err = s.WA.FinishLogin(wUser, *sd, c.Request)
		if err != nil {
			respondError(c, apperr.Unauthenticated(err.Error()))
			return
		}
		user = &wUser.user
	} else {
		handler := func(rawID, _ []byte) (webauthn.User, error) {
			u, _, err := s.Repo.FindUserByCredentialID(ctx, rawID)
			if err != nil {
				return nil, protocol.ErrBadRequest.WithDetails("credential not found")
			}
			return s.waUserFor(ctx, u), nil
		}
		wu, cr, err := s.WA.FinishPasskeyLogin(handler, *sd, c.Request)
		if err != nil {
			respondError(c, apperr.Unauthenticated(err.Error()))
			return
		}
		user, cred = &wu.(*waUser).user, cr
	}
	if !user.Active {
		respondError(c, apperr.Unauthenticated("account is deactivated"))
		return
	}
	_ = s.Repo.UpdateCredentialCounter(ctx, cred.ID, cred.Authenticator.SignCount, cred.Authenticator.CloneWarning)
	_ = s.Repo.TouchCredentialUsed(ctx, cred.ID, time.Now().UTC())

	res, err := s.issueSession(ctx, c.Writer, user, ip, ua)
	if err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, res)
}
