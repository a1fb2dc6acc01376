package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshop/internal/domain"
)

func fixedClock(t *time.Time) func() time.Time { return func() time.Time { return *t } }

func TestIssuePairRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := NewIssuer("s3cret", 15*time.Minute, 24*time.Hour).WithClock(fixedClock(&now))

	pair, err := iss.IssuePair(42)
	require.NoError(t, err)

	c, err := iss.Parse(pair.Access, TypeAccess)
	require.NoError(t, err)
	uid, _ := c.UserID()
	assert.Equal(t, int64(42), uid)
	assert.NotEmpty(t, c.ID)

	// access tokens cannot be used as refresh tokens and vice versa
	_, err = iss.Parse(pair.Access, TypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = iss.Parse(pair.Refresh, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := NewIssuer("s3cret", time.Minute, time.Hour).WithClock(fixedClock(&now))
	tok, err := iss.Issue(1, TypeAccess)
	require.NoError(t, err)

	other := NewIssuer("another", time.Minute, time.Hour).WithClock(fixedClock(&now))
	_, err = other.Parse(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	now = now.Add(2 * time.Minute)
	_, err = iss.Parse(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Parse("not-a-token", TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOTPWindowBoundary(t *testing.T) {
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	s := NewOTPSigner("s3cret", 300*time.Second).WithClock(fixedClock(&now))

	tok, err := s.Sign(7, "123456")
	require.NoError(t, err)

	now = issued.Add(299 * time.Second)
	c, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.UserID)
	assert.Equal(t, "123456", c.OTP)

	now = issued.Add(300 * time.Second)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestOTPIssuedAtHasSecondGranularity(t *testing.T) {
	issued := time.Date(2025, 3, 1, 12, 0, 0, 700_000_000, time.UTC)
	now := issued
	s := NewOTPSigner("s3cret", 300*time.Second).WithClock(fixedClock(&now))

	tok, err := s.Sign(7, "123456")
	require.NoError(t, err)

	// the window runs from the truncated second, not the exact instant
	now = issued.Add(299*time.Second + 200*time.Millisecond)
	_, err = s.Verify(tok)
	require.NoError(t, err)

	now = issued.Add(299*time.Second + 300*time.Millisecond)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestOTPRejectsTamperedAndAccessTokens(t *testing.T) {
	s := NewOTPSigner("s3cret", 300*time.Second)
	tok, err := s.Sign(7, "123456")
	require.NoError(t, err)

	_, err = NewOTPSigner("other", 300*time.Second).Verify(tok)
	assert.ErrorIs(t, err, ErrOTPInvalid)

	// a bearer token signed with the same secret lacks the otp audience
	access, err := NewIssuer("s3cret", time.Minute, time.Hour).Issue(7, TypeAccess)
	require.NoError(t, err)
	_, err = s.Verify(access)
	assert.ErrorIs(t, err, ErrOTPInvalid)
}

func TestGenerateOTP(t *testing.T) {
	otp, err := GenerateOTP(6)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, otp)
}

func TestLinkTokenBoundToUserState(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewLinkTokenGenerator("s3cret", 72*time.Hour).WithClock(fixedClock(&now))
	u := &domain.User{ID: 3, Email: "a@b.test", Hash: "hash-1"}

	tok := g.Make(u)
	assert.True(t, g.Check(u, tok))
	assert.False(t, g.Check(&domain.User{ID: 4, Email: u.Email, Hash: u.Hash}, tok))
	assert.False(t, g.Check(u, tok+"0"))
	assert.False(t, g.Check(u, "garbage"))

	changed := *u
	changed.Hash = "hash-2"
	assert.False(t, g.Check(&changed, tok), "password change invalidates the link")

	now = now.Add(72 * time.Hour)
	assert.False(t, g.Check(u, tok))
}

func TestUIDEncoding(t *testing.T) {
	enc := EncodeUID(12345)
	assert.NotContains(t, enc, "=")
	id, err := DecodeUID(enc)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), id)

	_, err = DecodeUID("!!")
	assert.Error(t, err)
}
