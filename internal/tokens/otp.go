package tokens

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrOTPExpired = errors.New("otp token expired")
	ErrOTPInvalid = errors.New("otp token invalid")
)

const otpAudience = "password-reset-otp"

type OTPClaims struct {
	UserID int64  `json:"user_id"`
	OTP    string `json:"otp"`
	jwt.RegisteredClaims
}

// OTPSigner binds a one-time code to a user in a signed, time-limited envelope.
type OTPSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewOTPSigner(secret string, ttl time.Duration) *OTPSigner {
	return &OTPSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *OTPSigner) WithClock(now func() time.Time) *OTPSigner {
	s.now = now
	return s
}

func (s *OTPSigner) Sign(userID int64, otp string) (string, error) {
	claims := &OTPClaims{
		UserID: userID,
		OTP:    otp,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: jwt.ClaimStrings{otpAudience},
			// whole seconds: an envelope may expire up to 1s early
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the signature and the issuance window. An envelope whose age
// has reached the TTL is expired.
func (s *OTPSigner) Verify(raw string) (*OTPClaims, error) {
	claims := &OTPClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(otpAudience), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid || claims.IssuedAt == nil {
		return nil, ErrOTPInvalid
	}
	if s.now().Sub(claims.IssuedAt.Time) >= s.ttl {
		return nil, ErrOTPExpired
	}
	return claims, nil
}

// GenerateOTP returns a random numeric code of the given length.
func GenerateOTP(length int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
