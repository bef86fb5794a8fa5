package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityClientFetchSession(t *testing.T) {
	var logoutCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		switch r.URL.Path {
		case "/api/sessionUser":
			if err != nil || cookie.Value != "good" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"uid":"u1","email":"ada@x.org","production":3}`))
		case "/api/sessionLogout":
			if err == nil {
				logoutCookie = cookie.Value
			}
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	client := NewIdentityClient(srv.URL+"/api/sessionUser", srv.URL+"/api/sessionLogout", time.Second)
	require.NotNil(t, client)

	claims, err := client.FetchSession(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["uid"])
	assert.Equal(t, float64(3), claims["production"])

	_, err = client.FetchSession(context.Background(), "bad")
	assert.Error(t, err)

	require.NoError(t, client.Logout(context.Background(), "good"))
	assert.Equal(t, "good", logoutCookie)
}

func TestIdentityClientDisabledWithoutURL(t *testing.T) {
	assert.Nil(t, NewIdentityClient("", "", time.Second))
}
