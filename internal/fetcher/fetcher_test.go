package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testFetcher() *Fetcher {
	return New(Config{
		Timeout:          5 * time.Second,
		MaxRetries:       3,
		RetryBackoffBase: time.Millisecond,
	}, zap.NewNop())
}

func TestFetchSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Plumbing Ltd</h1></body></html>")
	}))
	defer srv.Close()

	res := testFetcher().Fetch(context.Background(), srv.URL)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Body, "Plumbing Ltd")
	assert.Empty(t, res.Errors)
	assert.Equal(t, 0, res.Retries)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchBlockedNoRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "403 Forbidden")
	}))
	defer srv.Close()

	res := testFetcher().Fetch(context.Background(), srv.URL)

	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.True(t, res.Blocked())
	assert.Equal(t, 0, res.Retries)
	assert.Equal(t, int32(1), hits.Load(), "403 must short-circuit, not retry")
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "blocked")
}

func TestFetchRateLimitedThenOK(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "<html><body>back online</body></html>")
	}))
	defer srv.Close()

	res := testFetcher().Fetch(context.Background(), srv.URL)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Body, "back online")
	assert.Equal(t, 1, res.Retries)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchGarbledRecovery(t *testing.T) {
	garbled := strings.Repeat("\x01\x02\x03ab", 200)
	clean := "<html><body>" + strings.Repeat("readable content ", 40) + "</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.Header.Get("Accept-Encoding") == "" {
			fmt.Fprint(w, clean)
			return
		}
		fmt.Fprint(w, garbled)
	}))
	defer srv.Close()

	res := testFetcher().Fetch(context.Background(), srv.URL)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, clean, res.Body)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "fixed garbled response")
}

func TestFetchAcceptedThinBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	res := testFetcher().Fetch(context.Background(), srv.URL)

	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.True(t, res.NeedsBrowserRender())
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "needs browser rendering")
}

func TestFetchAcceptedFullBody(t *testing.T) {
	body := "<html><body>" + strings.Repeat("real text ", 100) + "</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	res := testFetcher().Fetch(context.Background(), srv.URL)

	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.False(t, res.NeedsBrowserRender())
	assert.Equal(t, body, res.Body)
}

func TestFetchConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	res := testFetcher().Fetch(context.Background(), "http://"+addr)

	assert.Equal(t, 0, res.StatusCode)
	assert.Equal(t, 2, res.Retries)
	assert.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], "connection failed")
}

func TestFetchContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := testFetcher().Fetch(ctx, srv.URL)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, res.StatusCode)
	assert.NotEmpty(t, res.Errors)
}

func TestLooksGarbled(t *testing.T) {
	assert.False(t, looksGarbled("<html>short</html>"))
	assert.False(t, looksGarbled(strings.Repeat("clean text\n", 100)))
	assert.True(t, looksGarbled(strings.Repeat("\x00\x01\x02xyz", 200)))
}

func TestErrorHTTPStatusReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	res := testFetcher().Fetch(context.Background(), srv.URL)

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "HTTP 404")
}
