package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	domainAuth "github.com/JarvisJ/plex-ai/domains/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_PinFlow(t *testing.T) {
	app, requireAuth, _ := newTestApp(t)
	stub := &stubAuth{}
	InitRestAuth(app.Group("/api"), stub, requireAuth)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/auth/pin", nil))
	require.NoError(t, err)
	var pin domainAuth.PinResponse
	results(t, decode(t, resp), &pin)
	assert.Equal(t, int64(5), pin.ID)
	assert.NotEmpty(t, pin.AuthURL)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/auth/pin/5?code=abcd", nil))
	require.NoError(t, err)
	data := decode(t, resp)
	assert.Equal(t, "PIN not yet authenticated", data.Message)

	// The strict exchange refuses an unclaimed PIN.
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/auth/token?pin_id=5&code=abcd", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	stub.authenticated = true
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/auth/token?pin_id=5&code=abcd", nil))
	require.NoError(t, err)
	var check domainAuth.PinCheckResponse
	results(t, decode(t, resp), &check)
	assert.True(t, check.Authenticated)
	assert.Equal(t, "bearer", check.TokenType)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/auth/pin/not-a-number?code=abcd", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuth_MeRequiresToken(t *testing.T) {
	app, requireAuth, token := newTestApp(t)
	InitRestAuth(app.Group("/api"), &stubAuth{}, requireAuth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(authed(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), token))
	require.NoError(t, err)
	var user domainAuth.UserInfo
	results(t, decode(t, resp), &user)
	assert.Equal(t, int64(testUserID), user.ID)
	// The handler passes the unsealed plex token to the usecase.
	assert.Equal(t, "plex-token", user.ClientIdentifier)
}
