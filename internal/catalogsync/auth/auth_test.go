package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/apperrors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	token, err := CreateToken(testSecret, "idgo", Identity{Username: "alice", IsAdmin: true}, time.Hour)
	require.Nil(t, err)

	id, err := ParseToken(context.Background(), testSecret, "idgo", token)
	require.Nil(t, err)
	assert.Equal(t, &Identity{Username: "alice", IsAdmin: true}, id)
}

func TestParseTokenRejects(t *testing.T) {
	valid, err := CreateToken(testSecret, "idgo", Identity{Username: "alice"}, time.Hour)
	require.Nil(t, err)
	expired, err := CreateToken(testSecret, "idgo", Identity{Username: "alice"}, -time.Hour)
	require.Nil(t, err)
	noExp, serr := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString([]byte(testSecret))
	require.NoError(t, serr)
	noSub, serr := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, serr)

	tests := []struct {
		name   string
		secret string
		issuer string
		token  string
		want   apperrors.Error
	}{
		{"malformed", testSecret, "", "not-a-token", ErrUnableToParseToken},
		{"wrong secret", "another secret", "", valid, ErrInvalidToken},
		{"wrong issuer", testSecret, "someone-else", valid, ErrInvalidToken},
		{"expired", testSecret, "", expired, ErrInvalidToken},
		{"no expiry", testSecret, "", noExp, ErrInvalidToken},
		{"no subject", testSecret, "", noSub, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseToken(context.Background(), tt.secret, tt.issuer, tt.token)
			assert.Nil(t, id)
			require.NotNil(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPreferredUsernameWins(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                "f3a1",
		"preferred_username": "alice",
		"exp":                jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	id, aerr := ParseToken(context.Background(), testSecret, "", token)
	require.Nil(t, aerr)
	assert.Equal(t, "alice", id.Username)
	assert.False(t, id.IsAdmin)
}

// actorEcho answers with the actor set on the request.
var actorEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	a := catcommon.GetActor(r.Context())
	if a.IsAdmin {
		w.Header().Set("X-Admin", "true")
	}
	w.Write([]byte(a.Username))
})

func TestIdentifyTrustedHeader(t *testing.T) {
	h := Identify(Options{TrustedHeader: "X-Forwarded-User"})(actorEcho)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-User", "alice")
	rsp := httptest.NewRecorder()
	h.ServeHTTP(rsp, req)
	assert.Equal(t, http.StatusOK, rsp.Code)
	assert.Equal(t, "alice", rsp.Body.String())

	rsp = httptest.NewRecorder()
	h.ServeHTTP(rsp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rsp.Code)
}

func TestIdentifyBearer(t *testing.T) {
	h := Identify(Options{TrustedHeader: "X-Forwarded-User", JWTSecret: testSecret})(actorEcho)
	token, err := CreateToken(testSecret, "", Identity{Username: "alice", IsAdmin: true}, time.Hour)
	require.Nil(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rsp := httptest.NewRecorder()
	h.ServeHTTP(rsp, req)
	assert.Equal(t, http.StatusOK, rsp.Code)
	assert.Equal(t, "alice", rsp.Body.String())
	assert.Equal(t, "true", rsp.Header().Get("X-Admin"))

	// the trusted header is ignored once tokens are required
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-User", "alice")
	rsp = httptest.NewRecorder()
	h.ServeHTTP(rsp, req)
	assert.Equal(t, http.StatusUnauthorized, rsp.Code)
}

type users map[string]*models.User

func (u users) GetUser(_ context.Context, name string) (*models.User, apperrors.Error) {
	if v, ok := u[name]; ok {
		return v, nil
	}
	return nil, dberror.ErrNotFound
}

func TestLoadUser(t *testing.T) {
	known := users{
		"alice": {Username: "alice", IsActive: true, IsAdmin: true},
		"bob":   {Username: "bob", IsActive: true},
		"carol": {Username: "carol"},
	}
	h := Identify(Options{TrustedHeader: "X-Forwarded-User"})(
		LoadUser(func(context.Context) UserGetter { return known })(actorEcho))

	tests := []struct {
		user       string
		wantStatus int
		wantAdmin  bool
	}{
		{"alice", http.StatusOK, true},
		{"bob", http.StatusOK, false},
		{"carol", http.StatusForbidden, false},
		{"dave", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Forwarded-User", tt.user)
			rsp := httptest.NewRecorder()
			h.ServeHTTP(rsp, req)
			assert.Equal(t, tt.wantStatus, rsp.Code)
			assert.Equal(t, tt.wantAdmin, rsp.Header().Get("X-Admin") == "true")
		})
	}
}
