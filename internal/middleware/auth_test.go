package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventia/console-gateway/internal/session"
	"github.com/ventia/console-gateway/internal/testutil"
)

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func serveAuth(issuer, token string) (*httptest.ResponseRecorder, *session.Session) {
	var got *session.Session
	h := Auth(testutil.TestSecret, issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = session.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestAuthAcceptsValidToken(t *testing.T) {
	token := testutil.SessionToken(t, "user-1", "tenant-1", "superadmin")
	rec, sess := serveAuth("", token)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, sess)
	assert.Equal(t, token, sess.AccessToken)
	assert.Equal(t, "user-1", sess.Subject)
	assert.Equal(t, "tenant-1", sess.TenantID)
	assert.True(t, sess.HasScope("superadmin"))
	assert.Equal(t, `"tenant-1"/"user-1"`, sess.Key())
}

func TestAuthRejects(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	secret := []byte(testutil.TestSecret)
	tests := []struct {
		name   string
		issuer string
		token  string
	}{
		{"missing", "", ""},
		{"garbage", "", "abc.def.ghi"},
		{"wrong secret", "", sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u", "tenant_id": "t", "exp": exp})},
		{"expired", "", sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "u", "tenant_id": "t", "exp": time.Now().Add(-time.Minute).Unix()})},
		{"no tenant", "", sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "u", "exp": exp})},
		{"no subject", "", sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"tenant_id": "t", "exp": exp})},
		{"none alg", "", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "u", "tenant_id": "t", "exp": exp})},
		{"wrong issuer", "ventia", sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "u", "tenant_id": "t", "iss": "else", "exp": exp})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, sess := serveAuth(tt.issuer, tt.token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, sess)
			assert.Contains(t, rec.Body.String(), `"error":"unauthorized"`)
		})
	}
}

func TestAuthMalformedHeader(t *testing.T) {
	h := Auth(testutil.TestSecret, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	for _, v := range []string{"Basic abc", "Bearer", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", v)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, v)
	}
}

func TestRequireScope(t *testing.T) {
	h := RequireScope("superadmin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, tt := range []struct {
		sess *session.Session
		want int
	}{
		{nil, http.StatusForbidden},
		{&session.Session{AccessToken: "x", Scopes: []string{"tenant"}}, http.StatusForbidden},
		{&session.Session{AccessToken: "x", Scopes: []string{"superadmin"}}, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.sess != nil {
			req = req.WithContext(session.WithContext(req.Context(), tt.sess))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code)
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("42", "conversation")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "x", "1.5"} {
		_, err := ParseID(raw, "conversation")
		assert.EqualError(t, err, "invalid conversation ID format", raw)
	}
}

func TestParseWidth(t *testing.T) {
	assert.Equal(t, 375, ParseWidth("375", 1280))
	assert.Equal(t, 0, ParseWidth("0", 1280))
	assert.Equal(t, 1280, ParseWidth("", 1280))
	assert.Equal(t, 1280, ParseWidth("wide", 1280))
	assert.Equal(t, 1280, ParseWidth("-1", 1280))
}
