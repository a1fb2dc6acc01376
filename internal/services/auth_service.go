package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"bookshop/internal/domain"
	"bookshop/internal/metrics"
	"bookshop/internal/repos"
	"bookshop/internal/tokens"
	"bookshop/internal/validate"
)

var ErrBadCreds = domain.Unauthorized("invalid credentials")

// dummyHash keeps login timing similar for unknown emails.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

type AuthService struct {
	Users    *repos.UserRepo
	Tokens   *tokens.Issuer
	Denylist tokens.Denylist
}

func NewAuthService(users *repos.UserRepo, iss *tokens.Issuer, deny tokens.Denylist) *AuthService {
	return &AuthService{Users: users, Tokens: iss, Denylist: deny}
}

type RegisterInput struct {
	Email           string `json:"email" validate:"required,max=254,email"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
	FirstName       string `json:"first_name" validate:"max=150"`
	LastName        string `json:"last_name" validate:"max=150"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
	IsStaff         bool   `json:"is_staff"`
}

// Register creates an active account. IsStaff is only honoured when actor is staff.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, actor *domain.User) (*domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	u := &domain.User{
		Email:     in.Email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     strings.TrimSpace(in.Phone),
		IsActive:  true,
		IsStaff:   in.IsStaff && actor != nil && actor.IsStaff,
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u.Hash = string(hash)
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repos.ErrEmailTaken) {
			return nil, domain.Invalid("email", "user with this email already exists")
		}
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, tokens.Pair, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, tokens.Pair{}, domain.BadRequest("email and password are required")
	}
	u, err := s.Users.ByEmail(ctx, email)
	if errors.Is(err, repos.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		metrics.Auth(metrics.LoginFail)
		return nil, tokens.Pair{}, ErrBadCreds
	}
	if err != nil {
		return nil, tokens.Pair{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil || !u.IsActive {
		metrics.Auth(metrics.LoginFail)
		return nil, tokens.Pair{}, ErrBadCreds
	}
	pair, err := s.Tokens.IssuePair(u.ID)
	if err != nil {
		return nil, tokens.Pair{}, err
	}
	metrics.Auth(metrics.LoginSuccess)
	return u, pair, nil
}

// Logout denylists the refresh token until it expires.
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	c, err := s.Tokens.Parse(refresh, tokens.TypeRefresh)
	if err != nil {
		return domain.BadRequest("invalid token")
	}
	fresh, err := s.Denylist.Revoke(ctx, c.ID, c.ExpiresAt.Time)
	if err != nil {
		return err
	}
	if !fresh {
		return domain.BadRequest("invalid token")
	}
	metrics.Auth(metrics.Logout)
	return nil
}

// Refresh exchanges a live refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (string, error) {
	c, err := s.Tokens.Parse(refresh, tokens.TypeRefresh)
	if err != nil {
		return "", domain.Unauthorized("token is invalid or expired")
	}
	revoked, err := s.Denylist.IsRevoked(ctx, c.ID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", domain.Unauthorized("token is blacklisted")
	}
	uid, _ := c.UserID()
	if _, err := s.activeUser(ctx, uid); err != nil {
		return "", err
	}
	return s.Tokens.Issue(uid, tokens.TypeAccess)
}

// Authenticate resolves a bearer access token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, access string) (*domain.User, error) {
	c, err := s.Tokens.Parse(access, tokens.TypeAccess)
	if err != nil {
		return nil, domain.Unauthorized("given token not valid for any token type")
	}
	uid, _ := c.UserID()
	return s.activeUser(ctx, uid)
}

func (s *AuthService) activeUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := s.Users.ByID(ctx, id)
	if errors.Is(err, repos.ErrUserNotFound) {
		return nil, domain.Unauthorized("user not found")
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, domain.Unauthorized("user is inactive")
	}
	return u, nil
}
