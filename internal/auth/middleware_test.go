package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoIdentity(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		w.Write([]byte("anonymous"))
		return
	}
	w.Write([]byte(id.UserID))
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	good, _ := ts.Issue(testUser())
	expired, _ := ts.IssueWithDuration(testUser(), -time.Minute)

	h := RequireAuth(ts)(http.HandlerFunc(echoIdentity))

	cases := []struct {
		name     string
		header   string
		value    string
		status   int
		body     string
		errorKey string
	}{
		{"x-auth-token", HeaderToken, good, http.StatusOK, "user-abc-123", ""},
		{"bearer", "Authorization", "Bearer " + good, http.StatusOK, "user-abc-123", ""},
		{"missing", "", "", http.StatusUnauthorized, "", "unauthorized"},
		{"expired", HeaderToken, expired, http.StatusUnauthorized, "", "token_expired"},
		{"garbage", HeaderToken, "abc", http.StatusUnauthorized, "", "token_invalid"},
		{"basic scheme", "Authorization", "Basic " + good, http.StatusUnauthorized, "", "unauthorized"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			if tc.errorKey == "" {
				assert.Equal(t, tc.body, rec.Body.String())
				return
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.errorKey, body["error"])
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	good, _ := ts.Issue(testUser())
	h := OptionalAuth(ts)(http.HandlerFunc(echoIdentity))

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("invalid token is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.Header.Set(HeaderToken, "nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.Header.Set(HeaderToken, good)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "user-abc-123", rec.Body.String())
	})
}

func TestTokenFromRequest_PrefersXAuthToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderToken, "from-header")
	req.Header.Set("Authorization", "Bearer from-bearer")

	assert.Equal(t, "from-header", TokenFromRequest(req))
}
