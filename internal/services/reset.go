package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"bookshop/internal/domain"
	"bookshop/internal/mail"
	"bookshop/internal/metrics"
	"bookshop/internal/repos"
	"bookshop/internal/tokens"
	"bookshop/internal/validate"
)

// ResetStrategy is one way of letting a user set a new password without the old one.
type ResetStrategy interface {
	Name() string
	Request(ctx context.Context, req ResetRequest) (ResetTicket, error)
	Confirm(ctx context.Context, in ResetConfirm) error
}

type ResetRequest struct {
	Email string `json:"email"`
}

// ResetTicket is what the request step hands back to the caller. The link
// strategy returns nothing; the OTP strategy returns the signed envelope and,
// when echo is enabled, the code itself.
type ResetTicket struct {
	OTP   string `json:"otp,omitempty"`
	Token string `json:"token,omitempty"`
}

type ResetConfirm struct {
	Email           string `json:"email"`
	UIDB64          string `json:"uidb64"`
	Token           string `json:"token"`
	OTP             string `json:"otp"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	NewPassword     string `json:"new_password"`
}

func setPassword(ctx context.Context, users *repos.UserRepo, id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := users.SetPassword(ctx, id, string(hash)); err != nil {
		return err
	}
	metrics.Auth(metrics.ResetConfirm)
	return nil
}

const passwordPolicy = "password must be 8-64 characters with upper, lower, digit and symbol"

// LinkReset emails a link carrying the user id and a token bound to the
// current password hash.
type LinkReset struct {
	Users    *repos.UserRepo
	Tokens   *tokens.LinkTokenGenerator
	Mail     mail.Sender
	LinkBase string
}

func (LinkReset) Name() string { return "link" }

func (r *LinkReset) Request(ctx context.Context, req ResetRequest) (ResetTicket, error) {
	email, ok := validate.Email(req.Email)
	if !ok {
		return ResetTicket{}, domain.Invalid("email", "enter a valid email address")
	}
	u, err := r.Users.ByEmail(ctx, email)
	if errors.Is(err, repos.ErrUserNotFound) {
		return ResetTicket{}, domain.Invalid("email", "user with this email does not exist")
	}
	if err != nil {
		return ResetTicket{}, err
	}

	link := fmt.Sprintf("%s/%s/%s/", r.LinkBase, tokens.EncodeUID(u.ID), r.Tokens.Make(u))
	if err := r.Mail.Send(ctx, u.Email, "Password Reset", "Reset link: "+link); err != nil {
		return ResetTicket{}, fmt.Errorf("send reset email: %w", err)
	}
	metrics.Auth(metrics.ResetRequest)
	return ResetTicket{}, nil
}

func (r *LinkReset) Confirm(ctx context.Context, in ResetConfirm) error {
	if in.Password != in.ConfirmPassword {
		return domain.Invalid("password", "passwords must match")
	}
	if !validate.Password(in.Password) {
		return domain.Invalid("password", passwordPolicy)
	}
	id, err := tokens.DecodeUID(in.UIDB64)
	if err != nil {
		return domain.Invalid("uidb64", "invalid UID")
	}
	u, err := r.Users.ByID(ctx, id)
	if errors.Is(err, repos.ErrUserNotFound) {
		return domain.Invalid("uidb64", "invalid UID")
	}
	if err != nil {
		return err
	}
	if !r.Tokens.Check(u, in.Token) {
		return domain.Invalid("token", "token is invalid or expired")
	}
	return setPassword(ctx, r.Users, u.ID, in.Password)
}

// OTPReset issues a six digit code inside a signed, time-limited envelope.
// With Echo set the code is returned to the caller instead of being mailed.
type OTPReset struct {
	Users  *repos.UserRepo
	Signer *tokens.OTPSigner
	Mail   mail.Sender
	Echo   bool
}

func (OTPReset) Name() string { return "otp" }

func (r *OTPReset) Request(ctx context.Context, req ResetRequest) (ResetTicket, error) {
	if strings.TrimSpace(req.Email) == "" {
		return ResetTicket{}, domain.BadRequest("email is required")
	}
	u, err := r.Users.ByEmail(ctx, req.Email)
	if errors.Is(err, repos.ErrUserNotFound) {
		return ResetTicket{}, domain.BadRequest("user not found")
	}
	if err != nil {
		return ResetTicket{}, err
	}

	otp, err := tokens.GenerateOTP(6)
	if err != nil {
		return ResetTicket{}, err
	}
	token, err := r.Signer.Sign(u.ID, otp)
	if err != nil {
		return ResetTicket{}, err
	}
	metrics.Auth(metrics.ResetRequest)
	if r.Echo {
		return ResetTicket{OTP: otp, Token: token}, nil
	}
	if err := r.Mail.Send(ctx, u.Email, "Password Reset Code", "Your password reset code is: "+otp); err != nil {
		return ResetTicket{}, fmt.Errorf("send otp email: %w", err)
	}
	return ResetTicket{Token: token}, nil
}

func (r *OTPReset) Confirm(ctx context.Context, in ResetConfirm) error {
	if strings.TrimSpace(in.Email) == "" || in.OTP == "" || in.Token == "" || in.NewPassword == "" {
		return domain.BadRequest("email, otp, token and new_password are required")
	}
	if !validate.Password(in.NewPassword) {
		return domain.Invalid("new_password", passwordPolicy)
	}
	u, err := r.Users.ByEmail(ctx, in.Email)
	if errors.Is(err, repos.ErrUserNotFound) {
		return domain.BadRequest("user not found")
	}
	if err != nil {
		return err
	}
	claims, err := r.Signer.Verify(in.Token)
	switch {
	case errors.Is(err, tokens.ErrOTPExpired):
		return domain.BadRequest("OTP expired")
	case err != nil:
		return domain.BadRequest("invalid token")
	}
	if claims.UserID != u.ID || claims.OTP != in.OTP {
		return domain.BadRequest("invalid OTP")
	}
	return setPassword(ctx, r.Users, u.ID, in.NewPassword)
}
