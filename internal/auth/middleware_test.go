package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	userID := uuid.New()
	pair, err := ts.GeneratePair(userID)
	require.NoError(t, err)

	var gotID uuid.UUID
	var gotOK bool
	handler := RequireAuth(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + pair.AccessToken, http.StatusOK},
		{"missing header", "", http.StatusForbidden},
		{"wrong scheme", "Basic " + pair.AccessToken, http.StatusForbidden},
		{"empty token", "Bearer ", http.StatusForbidden},
		{"garbage token", "Bearer garbage", http.StatusForbidden},
		{"refresh token used as access", "Bearer " + pair.RefreshToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotOK = uuid.Nil, false

			req := httptest.NewRequest(http.MethodGet, "/user", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.True(t, gotOK)
				assert.Equal(t, userID, gotID)
			} else {
				assert.False(t, gotOK)
				assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
			}
		})
	}
}

func TestUserIDFromContext_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := UserIDFromContext(req.Context())
	assert.False(t, ok)
}
