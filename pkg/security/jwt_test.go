package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_IssueValidate(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", "HS256", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue("plex-token", 42, "jj")
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "plex-token", claims.PlexToken)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "jj", claims.Username)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, "plex-ai", claims.Issuer)
}

func TestTokenIssuer_PlexTokenIsSealed(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", "HS256", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue("plex-token", 42, "jj")
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &SessionClaims{})
	require.NoError(t, err)
	raw := parsed.Claims.(*SessionClaims)
	assert.NotEqual(t, "plex-token", raw.PlexToken)
	assert.NotContains(t, raw.PlexToken, "plex-token")
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", "HS256", time.Hour)
	require.NoError(t, err)
	base := time.Now()
	issuer.now = func() time.Time { return base }

	token, err := issuer.Issue("plex-token", 1, "u")
	require.NoError(t, err)

	issuer.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsOtherSecretAndTampering(t *testing.T) {
	a, err := NewTokenIssuer("secret-a", "HS256", time.Hour)
	require.NoError(t, err)
	b, err := NewTokenIssuer("secret-b", "HS256", time.Hour)
	require.NoError(t, err)

	token, err := a.Issue("plex-token", 1, "u")
	require.NoError(t, err)

	_, err = b.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	_, err = a.Validate(parts[0] + "." + parts[1] + ".AAAA")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Validate("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsOtherAlgorithm(t *testing.T) {
	hs256, err := NewTokenIssuer("secret", "HS256", time.Hour)
	require.NoError(t, err)
	hs512, err := NewTokenIssuer("secret", "HS512", time.Hour)
	require.NoError(t, err)

	token, err := hs512.Issue("plex-token", 1, "u")
	require.NoError(t, err)
	_, err = hs256.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuer_Config(t *testing.T) {
	_, err := NewTokenIssuer("", "HS256", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenIssuer("secret", "RS256", time.Hour)
	assert.Error(t, err)

	issuer, err := NewTokenIssuer("secret", "HS256", 0)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, issuer.lifetime)
}

func TestSealer(t *testing.T) {
	s, err := NewSealer("secret")
	require.NoError(t, err)

	a, err := s.Seal("value")
	require.NoError(t, err)
	b, err := s.Seal("value")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	plain, err := s.Open(a)
	require.NoError(t, err)
	assert.Equal(t, "value", plain)

	other, err := NewSealer("other")
	require.NoError(t, err)
	_, err = other.Open(a)
	assert.ErrorIs(t, err, ErrSealedValue)

	_, err = s.Open("!!")
	assert.ErrorIs(t, err, ErrSealedValue)
	_, err = s.Open("AAAA")
	assert.ErrorIs(t, err, ErrSealedValue)
}
