package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func newDirectoryServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/organizers/org-1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"firstName":"Ada","lastName":"Lovelace","email":"ada@hackpsu.org"}`))
		case "/organizers/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"firstName":"Too","lastName":"Late"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestLookupOrganizer(t *testing.T) {
	var hits int32
	srv := newDirectoryServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zaptest.NewLogger(t))
	info := c.Lookup(context.Background(), "org-1")
	assert.Equal(t, Info{Name: "Ada Lovelace", Email: "ada@hackpsu.org", IsOrganizer: true}, info)
}

func TestLookupFallsBackToPlaceholder(t *testing.T) {
	var hits int32
	srv := newDirectoryServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond, zaptest.NewLogger(t))
	assert.Equal(t, Info{Name: "User"}, c.Lookup(context.Background(), "hacker-9"))
	assert.Equal(t, Info{Name: "User"}, c.Lookup(context.Background(), "slow"))
	assert.Equal(t, Info{Name: "User"}, c.Lookup(context.Background(), ""))

	unreachable := NewClient("http://127.0.0.1:1", 50*time.Millisecond, nil)
	assert.Equal(t, Info{Name: "User"}, unreachable.Lookup(context.Background(), "org-1"))
}

func TestLookupManyDeduplicates(t *testing.T) {
	var hits int32
	srv := newDirectoryServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	got := c.LookupMany(context.Background(), []string{"org-1", "hacker-1", "org-1", ""})
	assert.Len(t, got, 2)
	assert.Equal(t, "Ada Lovelace", got["org-1"].Name)
	assert.Equal(t, "User", got["hacker-1"].Name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
