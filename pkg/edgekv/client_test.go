package edgekv_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StratoEdge/edgekv_sdk_go/internal/httpx"
	"github.com/StratoEdge/edgekv_sdk_go/pkg/edgekv"
)

const (
	okListBody = `{"success":true,"errors":[],"messages":[],"result":[{"name":"app:1","expiration":1767225600,"metadata":{"owner":"core"}},{"name":"app:2"}],"result_info":{"count":2,"cursor":"opaque-cursor-1"}}`
	okSetBody  = `{"success":true,"errors":[],"messages":[],"result":null}`
	okDelBody  = `{"success":true,"errors":[],"messages":[],"result":{"count":2}}`
	missBody   = `{"success":false,"errors":[{"code":10009,"message":"key not found"}],"messages":[],"result":null}`
)

func testConfig() edgekv.Config {
	return edgekv.Config{
		AccountID:   "acct-1",
		NamespaceID: "ns-default",
		APIToken:    "test-token",
	}
}

func newTestClient(t *testing.T, handler http.Handler) *edgekv.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := edgekv.New(testConfig(), edgekv.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return client
}

func writeBody(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func TestNewRequiresCompleteConfig(t *testing.T) {
	_, err := edgekv.New(edgekv.Config{AccountID: "a", NamespaceID: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APIToken")

	_, err = edgekv.New(edgekv.Config{})
	require.Error(t, err)

	_, err = edgekv.New(testConfig())
	require.NoError(t, err)
}

func TestListKeys(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/accounts/acct-1/storage/kv/namespaces/ns-default/keys", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "edgekv-sdk-go/"+edgekv.Version, r.Header.Get("User-Agent"))

		q := r.URL.Query()
		assert.Equal(t, "25", q.Get("limit"))
		assert.Equal(t, "page-2-token", q.Get("cursor"))
		assert.Equal(t, "app:", q.Get("prefix"))

		writeBody(w, okListBody)
	}))

	res, err := client.ListKeys(context.Background(), &edgekv.ListKeysOptions{
		Limit:  25,
		Cursor: "page-2-token",
		Prefix: "app:",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Result, 2)
	assert.Equal(t, "app:1", res.Result[0].Name)
	assert.Equal(t, int64(1767225600), res.Result[0].Expiration)
	assert.Equal(t, "core", res.Result[0].Metadata["owner"])
	assert.Equal(t, "app:2", res.Result[1].Name)
	require.NotNil(t, res.ResultInfo)
	assert.Equal(t, 2, res.ResultInfo.Count)
	assert.Equal(t, "opaque-cursor-1", res.ResultInfo.Cursor)
}

func TestListKeysZeroOptions(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Zero values stay off the wire entirely.
		assert.Equal(t, "", r.URL.RawQuery)
		writeBody(w, okListBody)
	}))

	res, err := client.ListKeys(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestBaseURLPathPrefixPreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/client/v1/accounts/acct-1/storage/kv/namespaces/ns-default/keys", r.URL.Path)
		writeBody(w, okListBody)
	}))
	t.Cleanup(srv.Close)

	client, err := edgekv.New(testConfig(), edgekv.WithBaseURL(srv.URL+"/client/v1"))
	require.NoError(t, err)

	_, err = client.ListKeys(context.Background(), nil)
	require.NoError(t, err)
}

func TestGet(t *testing.T) {
	t.Run("raw value", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/accounts/acct-1/storage/kv/namespaces/ns-default/values/greeting", r.URL.Path)
			w.Header().Set("Content-Type", "text/plain")
			_, _ = io.WriteString(w, "hello world")
		}))

		value, ok, err := client.Get(context.Background(), "greeting", nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "hello world", value)
	})

	t.Run("json body stays raw", func(t *testing.T) {
		raw := `{"count":1,"tags":["a","b"]}`
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, raw)
		}))

		value, ok, err := client.Get(context.Background(), "config", nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, raw, value)
	})

	t.Run("missing key is not an error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, missBody)
		}))

		value, ok, err := client.Get(context.Background(), "missing", nil)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "", value)
	})

	t.Run("auth failure looks like absence", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"success":false,"errors":[{"code":10000,"message":"authentication error"}],"messages":[],"result":null}`)
		}))

		_, ok, err := client.Get(context.Background(), "anything", nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))

		_, _, err := client.Get(context.Background(), "  ", nil)
		require.Error(t, err)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("transport error propagates", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, ok, err := client.Get(ctx, "greeting", nil)
		require.Error(t, err)
		assert.False(t, ok)
	})
}

func TestGetEncodesKey(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Slashes and spaces inside the key must stay percent-encoded
		// on the wire so the key remains one path segment.
		assert.Equal(t,
			"/accounts/acct-1/storage/kv/namespaces/ns-default/values/app%2Fconfig%20v2",
			r.URL.EscapedPath())
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "nested")
	}))

	value, ok, err := client.Get(context.Background(), "app/config v2", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "nested", value)
}

func TestSet(t *testing.T) {
	t.Run("raw text body", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/accounts/acct-1/storage/kv/namespaces/ns-default/values/greeting", r.URL.Path)
			assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
			assert.Equal(t, "", r.URL.RawQuery)

			body, readErr := io.ReadAll(r.Body)
			assert.NoError(t, readErr)
			assert.Equal(t, `{"looks":"like json"}`, string(body))

			writeBody(w, okSetBody)
		}))

		res, err := client.Set(context.Background(), "greeting", `{"looks":"like json"}`, nil)
		require.NoError(t, err)
		assert.True(t, res.Success)
	})

	t.Run("ttl converts to seconds", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "600", q.Get("expiration_ttl"))
			assert.False(t, q.Has("expiration"))
			writeBody(w, okSetBody)
		}))

		_, err := client.Set(context.Background(), "k", "v", &edgekv.SetOptions{ExpirationTTL: "10m"})
		require.NoError(t, err)
	})

	t.Run("absolute expiration", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "1767225600", q.Get("expiration"))
			assert.False(t, q.Has("expiration_ttl"))
			writeBody(w, okSetBody)
		}))

		_, err := client.Set(context.Background(), "k", "v", &edgekv.SetOptions{Expiration: 1767225600})
		require.NoError(t, err)
	})

	t.Run("ttl wins over expiration", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "90", q.Get("expiration_ttl"))
			assert.False(t, q.Has("expiration"))
			writeBody(w, okSetBody)
		}))

		_, err := client.Set(context.Background(), "k", "v", &edgekv.SetOptions{
			Expiration:    1767225600,
			ExpirationTTL: "90s",
		})
		require.NoError(t, err)
	})

	t.Run("invalid ttl rejected before any request", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))

		_, err := client.Set(context.Background(), "k", "v", &edgekv.SetOptions{ExpirationTTL: "ten minutes"})
		require.Error(t, err)
		assert.Equal(t, int32(0), calls.Load())
	})
}

func TestDeleteSingleBulkRequest(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/accounts/acct-1/storage/kv/namespaces/ns-default/bulk", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, readErr := io.ReadAll(r.Body)
		assert.NoError(t, readErr)
		assert.JSONEq(t, `["app:1","app:2","app:3"]`, string(body))

		writeBody(w, okDelBody)
	}))

	res, err := client.Delete(context.Background(), []string{"app:1", "app:2", "app:3"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.JSONEq(t, `{"count":2}`, string(res.Result))

	// Many keys still mean exactly one request.
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeleteRejectsEmptyInput(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := client.Delete(context.Background(), nil, nil)
	require.Error(t, err)

	_, err = client.Delete(context.Background(), []string{}, nil)
	require.Error(t, err)

	_, err = client.Delete(context.Background(), []string{"ok", " "}, nil)
	require.Error(t, err)

	assert.Equal(t, int32(0), calls.Load())
}

func TestNamespaceOverride(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct-1/storage/kv/namespaces/ns-override/values/k", r.URL.Path)
		// The namespace travels in the path, never the query.
		assert.Equal(t, "", r.URL.RawQuery)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "v")
	}))

	_, ok, err := client.Get(context.Background(), "k", &edgekv.GetOptions{NamespaceID: "ns-override"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnvelopeReturnedVerbatim(t *testing.T) {
	t.Run("failure envelope on 200", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, missBody)
		}))

		res, err := client.ListKeys(context.Background(), nil)
		require.NoError(t, err)
		assert.False(t, res.Success)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, 10009, res.Errors[0].Code)

		envErr := res.Err()
		require.Error(t, envErr)
		assert.Contains(t, envErr.Error(), "10009")
	})

	t.Run("failure envelope on 400", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, missBody)
		}))

		res, err := client.Set(context.Background(), "k", "v", nil)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "key not found", res.Errors[0].Message)
	})
}

func TestNonEnvelopeBodies(t *testing.T) {
	t.Run("gateway error page", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "<html>bad gateway</html>")
		}))

		_, err := client.ListKeys(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("garbage on success status", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, "{truncated")
		}))

		_, err := client.Delete(context.Background(), []string{"k"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode response")
	})
}

func TestNonEnvelopeErrorClassification(t *testing.T) {
	t.Run("server fault is transient", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"success":"degraded","incident":"edge-7741"}`)
		}))

		_, err := client.ListKeys(context.Background(), nil)
		require.Error(t, err)

		// A retrying caller classifies the failure through a plain
		// interface assertion, no internal import needed.
		var transient interface{ Retryable() bool }
		require.ErrorAs(t, err, &transient)
		assert.True(t, transient.Retryable())

		var httpErr *httpx.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)

		payload, ok := httpErr.JSON.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "edge-7741", payload["incident"])
	})

	t.Run("client fault is not", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, "<html>bad request</html>")
		}))

		_, err := client.ListKeys(context.Background(), nil)
		require.Error(t, err)

		var transient interface{ Retryable() bool }
		require.ErrorAs(t, err, &transient)
		assert.False(t, transient.Retryable())

		var httpErr *httpx.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Nil(t, httpErr.JSON)
	})
}

func TestNilClient(t *testing.T) {
	var client *edgekv.Client

	_, err := client.ListKeys(context.Background(), nil)
	require.Error(t, err)

	_, _, err = client.Get(context.Background(), "k", nil)
	require.Error(t, err)

	_, err = client.Set(context.Background(), "k", "v", nil)
	require.Error(t, err)

	_, err = client.Delete(context.Background(), []string{"k"}, nil)
	require.Error(t, err)
}
