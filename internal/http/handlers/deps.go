package handlers

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"bookshop/internal/config"
	"bookshop/internal/events"
	"bookshop/internal/mail"
	"bookshop/internal/repos"
	"bookshop/internal/services"
	"bookshop/internal/storage"
	"bookshop/internal/tokens"
)

// External are the outbound collaborators. Nil fields fall back to local
// implementations: log-only mail, no events, the SQL denylist, disk storage.
type External struct {
	Mail     mail.Sender
	Events   events.Publisher
	Denylist tokens.Denylist
	Store    storage.Store
	Log      *zap.Logger
}

type Deps struct {
	Auth *services.AuthService

	AuthHandler     *AuthHandler
	BookHandler     *BookHandler
	CategoryHandler *CategoryHandler
	CartHandler     *CartHandler
	OrderHandler    *OrderHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, ext External) *Deps {
	if ext.Log == nil {
		ext.Log = zap.NewNop()
	}
	if ext.Mail == nil {
		ext.Mail = mail.LogSender{Log: ext.Log}
	}
	if ext.Events == nil {
		ext.Events = events.Nop{}
	}
	if ext.Denylist == nil {
		ext.Denylist = repos.NewRevokedTokenRepo(db)
	}
	if ext.Store == nil {
		ext.Store = &storage.LocalStore{Dir: cfg.MediaDir, BaseURL: cfg.MediaBaseURL}
	}

	userRepo := repos.NewUserRepo(db)
	catRepo := repos.NewCategoryRepo(db)
	bookRepo := repos.NewBookRepo(db)
	cartRepo := repos.NewCartRepo(db)
	orderRepo := repos.NewOrderRepo(db)

	issuer := tokens.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authSvc := services.NewAuthService(userRepo, issuer, ext.Denylist)
	catalogSvc := services.NewCatalogService(catRepo, bookRepo, ext.Store)
	cartSvc := services.NewCartService(cartRepo, bookRepo)
	orderSvc := services.NewOrderService(orderRepo, ext.Events)

	link := &services.LinkReset{
		Users:    userRepo,
		Tokens:   tokens.NewLinkTokenGenerator(cfg.JWTSecret, cfg.ResetLinkTTL),
		Mail:     ext.Mail,
		LinkBase: cfg.ResetLinkBase,
	}
	otp := &services.OTPReset{
		Users:  userRepo,
		Signer: tokens.NewOTPSigner(cfg.JWTSecret, cfg.OTPTTL),
		Mail:   ext.Mail,
		Echo:   cfg.OTPEcho,
	}

	return &Deps{
		Auth:            authSvc,
		AuthHandler:     &AuthHandler{Auth: authSvc, Link: link, OTP: otp},
		BookHandler:     &BookHandler{Catalog: catalogSvc},
		CategoryHandler: &CategoryHandler{Catalog: catalogSvc},
		CartHandler:     &CartHandler{Cart: cartSvc},
		OrderHandler:    &OrderHandler{Orders: orderSvc},
	}
}
