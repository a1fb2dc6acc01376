package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "bookshop/internal/log"
	"bookshop/internal/services"
)

type AuthHandler struct {
	Auth *services.AuthService
	Link services.ResetStrategy
	OTP  services.ResetStrategy
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	actor := CurrentUser(c)
	u, err := h.Auth.Register(c.UserContext(), in, actor)
	if err != nil {
		applog.Info(c, "auth.register.fail", map[string]any{"email": in.Email, "reason": err.Error()})
		return err
	}
	if in.IsStaff && !u.IsStaff {
		applog.Security(c, "auth.register.staff_ignored", map[string]any{"email": u.Email})
	}
	applog.Audit(c, "auth.register.success", map[string]any{"email": u.Email, "new_user_id": u.ID, "is_staff": u.IsStaff})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "User registered successfully", "user": u})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	u, pair, err := h.Auth.Login(c.UserContext(), in.Email, in.Password)
	if err != nil {
		applog.Security(c, "auth.login.fail", map[string]any{"email": in.Email})
		return err
	}
	c.Locals("user_id", u.ID)
	applog.Audit(c, "auth.login.success", map[string]any{"email": u.Email})
	return c.JSON(fiber.Map{"tokens": pair, "user": u})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var in struct {
		Refresh string `json:"refresh"`
	}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := h.Auth.Logout(c.UserContext(), in.Refresh); err != nil {
		applog.Security(c, "auth.logout.fail", nil)
		return err
	}
	applog.Audit(c, "auth.logout", nil)
	return c.Status(fiber.StatusResetContent).JSON(fiber.Map{"message": "Logout successful"})
}

func (h *AuthHandler) VerifyToken(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"valid": true, "user": CurrentUser(c)})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var in struct {
		Refresh string `json:"refresh"`
	}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	access, err := h.Auth.Refresh(c.UserContext(), in.Refresh)
	if err != nil {
		applog.Security(c, "auth.refresh.fail", nil)
		return err
	}
	return c.JSON(fiber.Map{"access": access})
}

func (h *AuthHandler) resetRequest(c *fiber.Ctx, s services.ResetStrategy) (services.ResetTicket, error) {
	var in services.ResetRequest
	if err := parseBody(c, &in); err != nil {
		return services.ResetTicket{}, err
	}
	ticket, err := s.Request(c.UserContext(), in)
	if err != nil {
		applog.Security(c, "auth.reset.request.fail", map[string]any{"strategy": s.Name(), "email": in.Email})
		return services.ResetTicket{}, err
	}
	applog.Audit(c, "auth.reset.request", map[string]any{"strategy": s.Name(), "email": in.Email})
	return ticket, nil
}

func (h *AuthHandler) resetConfirm(c *fiber.Ctx, s services.ResetStrategy, in services.ResetConfirm) error {
	if err := s.Confirm(c.UserContext(), in); err != nil {
		applog.Security(c, "auth.reset.confirm.fail", map[string]any{"strategy": s.Name()})
		return err
	}
	applog.Audit(c, "auth.reset.confirm", map[string]any{"strategy": s.Name(), "email": in.Email})
	return c.JSON(fiber.Map{"message": "Password reset successful"})
}

func (h *AuthHandler) PasswordResetRequest(c *fiber.Ctx) error {
	if _, err := h.resetRequest(c, h.Link); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Password reset link sent"})
}

func (h *AuthHandler) PasswordResetConfirm(c *fiber.Ctx) error {
	var in services.ResetConfirm
	if err := parseBody(c, &in); err != nil {
		return err
	}
	in.UIDB64, in.Token = c.Params("uidb64"), c.Params("token")
	return h.resetConfirm(c, h.Link, in)
}

func (h *AuthHandler) PasswordResetRequestOTP(c *fiber.Ctx) error {
	ticket, err := h.resetRequest(c, h.OTP)
	if err != nil {
		return err
	}
	if ticket.OTP == "" {
		return c.JSON(fiber.Map{"message": "OTP sent to your email", "token": ticket.Token})
	}
	return c.JSON(fiber.Map{"message": "OTP generated", "otp": ticket.OTP, "token": ticket.Token})
}

func (h *AuthHandler) PasswordResetOTP(c *fiber.Ctx) error {
	var in services.ResetConfirm
	if err := parseBody(c, &in); err != nil {
		return err
	}
	return h.resetConfirm(c, h.OTP, in)
}
