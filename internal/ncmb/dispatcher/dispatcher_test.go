package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/apierr"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/cache"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/identity"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/request"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/response"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/session"
)

func newTestDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *session.Session, *identity.Store) {
	t.Helper()
	sess := session.New("app", "client")
	ident := identity.NewStore(t.TempDir(), sess, slog.Default())
	return New(sess, ident, slog.Default(), opts...), sess, ident
}

func TestDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(request.HeaderSignature))
		assert.NotEmpty(t, r.Header.Get(request.HeaderTimestamp))
		assert.Equal(t, "app", r.Header.Get(request.HeaderApplicationKey))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"objectId":"abc"}`))
	}))
	defer srv.Close()

	disp, _, _ := newTestDispatcher(t)
	req := request.New(http.MethodGet, srv.URL+"/2013-09-01/classes/TestClass", nil, nil)

	resp, err := disp.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.ObjectID())
}

func TestDo_SendsBodyAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	disp, _, _ := newTestDispatcher(t)
	req := request.New(http.MethodGet, srv.URL+"/2013-09-01/classes/TestClass", nil,
		map[string]string{"limit": "10"})

	_, err := disp.Do(context.Background(), req)
	require.NoError(t, err)
}

func TestDo_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"E403001","error":"no access"}`))
	}))
	defer srv.Close()

	disp, _, _ := newTestDispatcher(t)
	req := request.New(http.MethodGet, srv.URL+"/x", nil, nil)

	resp, err := disp.Do(context.Background(), req)
	assert.Nil(t, resp)
	assert.True(t, apierr.HasCode(err, apierr.CodeNoPermission))
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	disp, _, _ := newTestDispatcher(t)
	req := request.New(http.MethodGet, url+"/x", nil, nil)

	resp, err := disp.Do(context.Background(), req)
	assert.Nil(t, resp)
	assert.True(t, apierr.HasCode(err, apierr.CodeGeneric))
}

func TestDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	disp, _, _ := newTestDispatcher(t, WithTimeout(20*time.Millisecond))
	req := request.New(http.MethodGet, srv.URL+"/x", nil, nil)

	_, err := disp.Do(context.Background(), req)
	assert.True(t, apierr.HasCode(err, apierr.CodeGeneric))
}

// The invalid-auth-header code forces a logout before the caller sees
// the error.
func TestDo_InvalidAuthHeaderClearsIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"E401001","error":"header incorrect"}`))
	}))
	defer srv.Close()

	disp, sess, ident := newTestDispatcher(t)
	sess.SetLogin("token123", "u1")
	_, err := ident.WriteMerge(identity.KindUser, nil, identity.Document{"objectId": "u1"})
	require.NoError(t, err)

	req := request.New(http.MethodGet, srv.URL+"/x", nil, nil)
	_, err = disp.Do(context.Background(), req)

	assert.True(t, apierr.HasCode(err, apierr.CodeInvalidAuthHeader))
	assert.Empty(t, sess.SessionToken())
	assert.Empty(t, ident.Load(identity.KindUser))
}

// Other auth failures leave the identity alone.
func TestDo_AuthFailureKeepsIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"E401002","error":"wrong password"}`))
	}))
	defer srv.Close()

	disp, sess, _ := newTestDispatcher(t)
	sess.SetLogin("token123", "u1")

	req := request.New(http.MethodGet, srv.URL+"/x", nil, nil)
	_, err := disp.Do(context.Background(), req)

	assert.True(t, apierr.HasCode(err, apierr.CodeAuthFailure))
	assert.Equal(t, "token123", sess.SessionToken())
}

func TestDoAsync_ExactlyOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"objectId":"abc"}`))
	}))
	defer srv.Close()

	disp, _, _ := newTestDispatcher(t)
	req := request.New(http.MethodGet, srv.URL+"/x", nil, nil)

	var calls atomic.Int32
	done := make(chan struct{})
	disp.DoAsync(context.Background(), req, func(resp *response.Response, err error) {
		calls.Add(1)
		assert.NoError(t, err)
		assert.Equal(t, "abc", resp.ObjectID())
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("completion handler never fired")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoAsync_DeliversFailureViaHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	disp, _, _ := newTestDispatcher(t)
	req := request.New(http.MethodGet, url+"/x", nil, nil)

	done := make(chan error, 1)
	disp.DoAsync(context.Background(), req, func(resp *response.Response, err error) {
		assert.Nil(t, resp)
		done <- err
	})

	select {
	case err := <-done:
		assert.True(t, apierr.HasCode(err, apierr.CodeGeneric))
	case <-time.After(2 * time.Second):
		t.Fatal("completion handler never fired")
	}
}

// A successful GET lands in the offline cache and is replayed when the
// transport dies.
func TestDo_OfflineCacheFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"objectId":"cached"}`))
	}))

	respCache, err := cache.New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer respCache.Close()

	disp, _, _ := newTestDispatcher(t, WithCache(respCache))

	req := request.New(http.MethodGet, srv.URL+"/x", nil, nil)
	resp, err := disp.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "cached", resp.ObjectID())

	srv.Close()

	replay := request.New(http.MethodGet, srv.URL+"/x", nil, nil)
	resp, err = disp.Do(context.Background(), replay)
	require.NoError(t, err)
	assert.Equal(t, "cached", resp.ObjectID())
}

// Writes never fall back to the cache.
func TestDo_NoCacheFallbackForPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	url := srv.URL
	srv.Close()

	respCache, err := cache.New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer respCache.Close()
	require.NoError(t, respCache.Put(url+"/x", 200, []byte(`{}`)))

	disp, _, _ := newTestDispatcher(t, WithCache(respCache))
	req := request.New(http.MethodPost, url+"/x", map[string]any{"k": "v"}, nil)

	_, err = disp.Do(context.Background(), req)
	assert.True(t, apierr.HasCode(err, apierr.CodeGeneric))
}
