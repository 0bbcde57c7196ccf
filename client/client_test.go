package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer some-token", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("batch"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, err := w.Write([]byte(`{"session": "abc"}`))
		assert.NoError(t, err)
	}))
	defer server.Close()

	c := New(zaptest.NewLogger(t))
	var resp struct {
		Session string `json:"session"`
	}
	err := c.JSON(context.Background(), Request{
		Method: "POST",
		URL:    server.URL,
		Query:  url.Values{"batch": []string{"1"}},
		Header: http.Header{"Authorization": []string{"Bearer some-token"}},
		Body:   map[string]string{"refreshToken": "xyz"},
	}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Session)
}

func TestJSONBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "Token expired"}`))
	}))
	defer server.Close()

	c := New(zaptest.NewLogger(t))
	err := c.JSON(context.Background(), Request{Method: "GET", URL: server.URL}, &struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Token expired")
}

func TestJSONParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>definitely not json</html>`))
	}))
	defer server.Close()

	c := New(zaptest.NewLogger(t))
	err := c.JSON(context.Background(), Request{Method: "GET", URL: server.URL}, &struct{}{})
	require.Error(t, err)
	// decode failures include the offending body to debug private API changes
	assert.Contains(t, err.Error(), "Failed to parse response")
	assert.Contains(t, err.Error(), "definitely not json")
}

func TestBodyExcerptTruncates(t *testing.T) {
	long := make([]byte, maxBodyExcerpt*2)
	for i := range long {
		long[i] = 'a'
	}
	excerpt := bodyExcerpt(long)
	assert.Len(t, excerpt, maxBodyExcerpt+3)
	assert.Contains(t, excerpt, "...")
}
