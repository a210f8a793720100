package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrakonKapysta/web-beat-api/pkg/api"
)

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SessionCookies(rec, CookieConfig{Secure: true, SameSite: http.SameSiteLaxMode},
		"acc", 15*time.Minute, "ref", 7*24*time.Hour)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	access := cookieByName(cookies, api.AccessTokenCookie)
	require.NotNil(t, access)
	assert.Equal(t, "acc", access.Value)
	assert.Equal(t, 900, access.MaxAge)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, "/", access.Path)

	refresh := cookieByName(cookies, api.RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, "ref", refresh.Value)
	assert.Equal(t, 604800, refresh.MaxAge)
	assert.True(t, refresh.HttpOnly)
}

func TestClearSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSessionCookies(rec, CookieConfig{})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestAccessToken(t *testing.T) {
	tests := []struct {
		setup func(r *http.Request)
		name  string
		want  string
	}{
		{name: "nothing", setup: func(r *http.Request) {}, want: ""},
		{
			name:  "bearer header",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer hdr") },
			want:  "hdr",
		},
		{
			name:  "cookie",
			setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: api.AccessTokenCookie, Value: "ck"}) },
			want:  "ck",
		},
		{
			name: "header wins over cookie",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "bearer hdr")
				r.AddCookie(&http.Cookie{Name: api.AccessTokenCookie, Value: "ck"})
			},
			want: "hdr",
		},
		{
			name: "non bearer scheme falls back to cookie",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic abc")
				r.AddCookie(&http.Cookie{Name: api.AccessTokenCookie, Value: "ck"})
			},
			want: "ck",
		},
		{
			name:  "empty bearer",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") },
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			assert.Equal(t, tt.want, AccessToken(r))
		})
	}
}

func TestRefreshToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, RefreshToken(r))

	r.AddCookie(&http.Cookie{Name: api.RefreshTokenCookie, Value: "ref"})
	assert.Equal(t, "ref", RefreshToken(r))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, nil, "Access token not found", http.StatusUnauthorized)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Unauthorized", resp.Error)
	assert.Equal(t, "Access token not found", resp.Message)
}
