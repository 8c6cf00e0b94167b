// controllers/srv.go
package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"equipment_loaner/app"
	"equipment_loaner/auth"
	"equipment_loaner/availability"
	"equipment_loaner/config"
	"equipment_loaner/db"
	"equipment_loaner/loans"
	"equipment_loaner/models"
	"equipment_loaner/reports"
	"equipment_loaner/session"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Srv struct {
	WA       *webauthn.WebAuthn
	DB       *gorm.DB
	RDB      *redis.Client
	Repo     *db.Repo
	Sess     *session.Store
	AppSess  *session.AppSessionStore
	Tokens   *auth.TokenService
	Hasher   auth.BcryptHasher
	Engine   *loans.Engine
	Reporter *reports.Reporter
	Auditor  *availability.Auditor
	Cfg      config.Config
	Logger   *slog.Logger
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		WA:       a.WA,
		DB:       a.DB,
		RDB:      a.RDB,
		Repo:     a.Repo,
		Sess:     a.Ceremonies,
		AppSess:  a.Sessions,
		Tokens:   a.Tokens,
		Hasher:   a.Hasher,
		Engine:   a.Engine,
		Reporter: a.Reporter,
		Auditor:  a.Auditor,
		Cfg:      a.Config,
		Logger:   a.Logger,
	}
}

// --- helpers ---

// 统一设置业务会话 Cookie
func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Cfg.SecureCookies(),
		MaxAge:   int(maxAge / time.Second),
	})
}

func (s *Srv) clearAppCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Cfg.SecureCookies(),
	})
}

type loginResult struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

// 登录成功：创建会话 + 签发 token + 登录快照
func (s *Srv) issueSession(ctx context.Context, w http.ResponseWriter, u *models.User, ip, ua string) (*loginResult, error) {
	if err := s.Repo.TouchUserLogin(ctx, u.ID, ip, ua, time.Now().UTC()); err != nil {
		s.Logger.Warn("touch login failed", "user_id", u.ID, "error", err) // 不阻塞
	}
	id := uuid.NewString()
	if err := s.AppSess.Create(ctx, id, u.ID, string(u.Role)); err != nil {
		return nil, err
	}
	s.setAppCookie(w, id, s.AppSess.TTL())

	token, exp, err := s.Tokens.GenerateAccessToken(u.ID, string(u.Role))
	if err != nil {
		return nil, err
	}
	return &loginResult{User: u, AccessToken: token, ExpiresAt: exp}, nil
}

// WebAuthn: DB user -> waUser
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte                         { id, _ := uuid.Parse(u.user.ID); return id[:] }
func (u *waUser) WebAuthnName() string                       { return u.user.Username }
func (u *waUser) WebAuthnDisplayName() string                { return u.user.Name }
func (u *waUser) WebAuthnIcon() string                       { return "" }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toWaCred(c models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func (s *Srv) waUserFor(ctx context.Context, u *models.User) *waUser {
	cs, _ := s.Repo.LoadUserCredentials(ctx, u.ID)
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waUser{user: *u, creds: ws}
}

func (s *Srv) loadWAUserByID(ctx context.Context, id string) (*waUser, error) {
	u, err := s.Repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.waUserFor(ctx, u), nil
}

func (s *Srv) loadWAUserByUsername(ctx context.Context, username string) (*waUser, error) {
	u, err := s.Repo.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.waUserFor(ctx, u), nil
}
