package httpclient_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neotask/internal/platform/httpclient"
	"neotask/internal/shared"
)

func quiet() httpclient.Option {
	return httpclient.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Get_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := httpclient.New(quiet(), httpclient.WithRetries(2, time.Millisecond))
	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, attempts.Load())
}

func TestClient_Get_ReturnsLastResponseWhenRetriesRunOut(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := httpclient.New(quiet(), httpclient.WithRetries(1, time.Millisecond))
	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestClient_Get_DoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := httpclient.New(quiet(), httpclient.WithRetries(3, time.Millisecond))
	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestClient_Do_PostIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := httpclient.New(quiet(), httpclient.WithRetries(3, time.Millisecond))
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("{}"))
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestClient_Do_SetsDefaultHeaders(t *testing.T) {
	var ua, custom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		custom = r.Header.Get("X-Probe")
	}))
	defer srv.Close()

	c := httpclient.New(quiet(), httpclient.WithHeaders(map[string]string{"X-Probe": "1"}))
	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "neotask", ua)
	assert.Equal(t, "1", custom)
}

func TestClient_Get_ConnectionRefusedIsDependencyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := httpclient.New(quiet(), httpclient.WithRetries(1, time.Millisecond))
	_, err := c.Get(context.Background(), url)
	require.Error(t, err)
	assert.Equal(t, shared.KindDependencyFailure, shared.KindOf(err))
}

func TestClient_Get_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := httpclient.New(quiet())
	_, err := c.Get(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, shared.IsCanceled(err))
}

func TestClient_Get_InvalidURL(t *testing.T) {
	c := httpclient.New(quiet())
	_, err := c.Get(context.Background(), "://nope")
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}
