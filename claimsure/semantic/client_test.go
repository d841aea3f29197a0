package semantic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testClient(serverURL string) *Client {
	return NewClient(&Config{SearchURL: serverURL, TimeoutMS: 2000, RetryMax: 0})
}

func TestTopK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "x ray forearm", req.Query)
		assert.Equal(t, 4, req.K)

		json.NewEncoder(w).Encode(searchResponse{Candidates: []searchHit{
			{Name: "x_ray_forearm", Category: "imaging", ReferencePrice: 250, Distance: 0.12},
			{Name: "mri_head", Category: "imaging", ReferencePrice: 900, Distance: 0.48},
		}})
	}))
	defer server.Close()

	candidates, err := testClient(server.URL).TopK(context.Background(), "x ray forearm", 4)
	assert.NoError(t, err)
	assert.Len(t, candidates, 2)
	assert.Equal(t, "x_ray_forearm", candidates[0].Entry.Name)
	assert.Equal(t, 250.0, candidates[0].Entry.ReferencePrice)
	assert.Equal(t, 0.12, candidates[0].Distance)
	assert.Equal(t, "mri_head", candidates[1].Entry.Name)
}

func TestTopKEmptyIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer server.Close()

	candidates, err := testClient(server.URL).TopK(context.Background(), "x ray", 4)
	assert.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestTopKNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(server.URL).TopK(context.Background(), "x ray", 4)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
