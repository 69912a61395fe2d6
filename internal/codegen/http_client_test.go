package codegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/generate", r.URL.Path)

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://cedarridgecamps.com/camps", req.SourceURL)
		assert.Equal(t, 2, req.CodeVersion)

		_ = json.NewEncoder(w).Encode(Result{
			Code:  "extract()",
			Notes: "targets the session table",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, nil)
	result, err := client.Generate(context.Background(), Request{
		SourceURL:   "https://cedarridgecamps.com/camps",
		SourceName:  "Cedar Ridge",
		CodeVersion: 2,
	})

	require.NoError(t, err)
	assert.True(t, result.HasCode())
	assert.Equal(t, "extract()", result.Code)
}

func TestHTTPClientGenerateNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, nil)
	_, err := client.Generate(context.Background(), Request{SourceURL: "https://example.com"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestHTTPClientGenerateEmptyCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Result{Notes: "page requires a login"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, nil)
	result, err := client.Generate(context.Background(), Request{SourceURL: "https://example.com"})

	require.NoError(t, err)
	assert.False(t, result.HasCode())
	assert.Equal(t, "page requires a login", result.Notes)
}
