package whitelist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(url string, maxRetries int) *Client {
	c := NewClient(url, "secret", time.Second, maxRetries, testLogger())
	c.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func TestClient_Relay_Success(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"message":"steve added"}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL, 3).Relay(context.Background(), Request{Username: "steve_01", GuildID: "G", RequestedBy: "U"})
	require.NoError(t, err)
	require.Equal(t, Response{Success: true, Message: "steve added"}, resp)
	require.Equal(t, Request{Username: "steve_01", GuildID: "G", RequestedBy: "U"}, got)
}

func TestClient_Relay_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"ok"}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL, 3).Relay(context.Background(), Request{Username: "steve"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, int32(3), calls.Load())
}

func TestClient_Relay_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 2).Relay(context.Background(), Request{Username: "steve"})
	require.Error(t, err)
	require.True(t, IsStatusError(err))
	require.Equal(t, int32(3), calls.Load())
}

func TestClient_Relay_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":false,"message":"already whitelisted"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Relay(context.Background(), Request{Username: "steve"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusConflict, statusErr.StatusCode)
	require.Equal(t, "already whitelisted", statusErr.Message)
	require.Equal(t, int32(1), calls.Load())
}

func TestClient_Relay_RejectsInvalidUsername(t *testing.T) {
	for _, name := range []string{"", "ab", "this_name_is_far_too_long", "bad name", "semi;colon"} {
		t.Run(name, func(t *testing.T) {
			_, err := newTestClient("http://127.0.0.1:0", 0).Relay(context.Background(), Request{Username: name})
			require.ErrorIs(t, err, ErrInvalidUsername)
		})
	}
}

func TestClient_Relay_EmptyBodyIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL, 0).Relay(context.Background(), Request{Username: "steve"})
	require.NoError(t, err)
	require.True(t, resp.Success)
}

func TestClient_Relay_PlainTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("steve is now whitelisted\n"))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL, 0).Relay(context.Background(), Request{Username: "steve"})
	require.NoError(t, err)
	require.Equal(t, Response{Message: "steve is now whitelisted"}, resp)
}

func TestClient_Relay_NonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("<html>bad request</html>"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Relay(context.Background(), Request{Username: "steve"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.Empty(t, statusErr.Message)
}
