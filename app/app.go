package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"equipment_loaner/auth"
	"equipment_loaner/availability"
	"equipment_loaner/config"
	"equipment_loaner/db"
	"equipment_loaner/loans"
	"equipment_loaner/reports"
	"equipment_loaner/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	WA     *webauthn.WebAuthn
	Config config.Config
	Logger *slog.Logger

	Repo       *db.Repo
	Sessions   *session.AppSessionStore
	Ceremonies *session.Store
	Tokens     *auth.TokenService
	Hasher     auth.BcryptHasher
	Engine     *loans.Engine
	Reporter   *reports.Reporter
	Auditor    *availability.Auditor
}

// New connects to Postgres/SQLite and Redis, then assembles the app.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	gdb, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	return Assemble(cfg, gdb, rdb, logger)
}

// Assemble wires services around already opened stores.
func Assemble(cfg config.Config, gdb *gorm.DB, rdb *redis.Client, logger *slog.Logger) (*App, error) {
	// --- WebAuthn RP ---
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "Equipment Loaner",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("JWT_SECRET not set, bearer tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenService(secret, cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	q, err := db.NewQuery(gdb)
	if err != nil {
		return nil, err
	}
	if err := useValidator(); err != nil {
		return nil, err
	}

	repo := db.NewRepo(gdb)
	hasher := auth.NewBcryptHasher(0)
	sessions := session.NewAppSessionStore(rdb, cfg.SessionTTL)

	// --- Gin ---
	r := gin.Default()
	useCORS(r, cfg.WebOrigin)

	return &App{
		Router:     r,
		DB:         gdb,
		RDB:        rdb,
		WA:         wa,
		Config:     cfg,
		Logger:     logger,
		Repo:       repo,
		Sessions:   sessions,
		Ceremonies: session.NewStore(rdb, cfg.CeremonyTTL),
		Tokens:     tokens,
		Hasher:     hasher,
		Engine: loans.NewEngine(repo,
			loans.WithLogger(logger),
			loans.WithHasher(hasher),
			loans.WithSessionRevoker(sessions),
		),
		Reporter: reports.NewReporter(q),
		Auditor:  availability.NewAuditor(q, logger),
	}, nil
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// useValidator 把领域校验 tag 注册到 gin 的 binding 校验器
func useValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return loans.RegisterValidations(v)
}

func randomSecret() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
