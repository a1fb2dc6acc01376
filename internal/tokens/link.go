package tokens

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"bookshop/internal/domain"
)

// LinkTokenGenerator makes reset tokens bound to the user's current password
// hash and email, so a password change invalidates every outstanding link.
type LinkTokenGenerator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewLinkTokenGenerator(secret string, ttl time.Duration) *LinkTokenGenerator {
	return &LinkTokenGenerator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (g *LinkTokenGenerator) WithClock(now func() time.Time) *LinkTokenGenerator {
	g.now = now
	return g
}

func (g *LinkTokenGenerator) Make(u *domain.User) string {
	return g.makeAt(u, g.now().Unix())
}

func (g *LinkTokenGenerator) makeAt(u *domain.User, ts int64) string {
	ts36 := strconv.FormatInt(ts, 36)
	return ts36 + "-" + g.mac(u, ts36)
}

func (g *LinkTokenGenerator) mac(u *domain.User, ts36 string) string {
	h := hmac.New(sha256.New, g.secret)
	h.Write([]byte(strconv.FormatInt(u.ID, 10) + "|" + u.Hash + "|" + strings.ToLower(u.Email) + "|" + ts36))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func (g *LinkTokenGenerator) Check(u *domain.User, token string) bool {
	ts36, sig, ok := strings.Cut(token, "-")
	if !ok || sig == "" {
		return false
	}
	ts, err := strconv.ParseInt(ts36, 36, 64)
	if err != nil {
		return false
	}
	if !hmac.Equal([]byte(sig), []byte(g.mac(u, ts36))) {
		return false
	}
	age := g.now().Sub(time.Unix(ts, 0))
	return age >= 0 && age < g.ttl
}

// EncodeUID renders a user id the way reset links carry it.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

func DecodeUID(s string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}
