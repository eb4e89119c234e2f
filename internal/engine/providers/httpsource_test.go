// internal/engine/providers/httpsource_test.go
package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	commonhttp "application-engine/internal/common/http"
	"application-engine/internal/models"
)

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "app-1", r.Header.Get("X-Application-Id"))
		assert.Equal(t, "citizen-1", r.Header.Get("X-Subject-Id"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "Jon Arnarson", "age": 42}`))
	}))
	defer srv.Close()

	source := HTTPSource(commonhttp.NewClient(time.Second), srv.URL, "secret")
	value, err := source(context.Background(), &models.Application{ID: "app-1", CreatedBy: "citizen-1"})

	assert.NoError(t, err)
	payload, ok := value.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "Jon Arnarson", payload["name"])
}

func TestHTTPSource_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	source := HTTPSource(commonhttp.NewClient(time.Second), srv.URL, "")
	_, err := source(context.Background(), &models.Application{ID: "app-1"})
	assert.ErrorContains(t, err, "status 404")
}

func TestHTTPSource_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	source := HTTPSource(commonhttp.NewClient(time.Second), srv.URL, "")
	_, err := source(context.Background(), &models.Application{ID: "app-1"})
	assert.ErrorContains(t, err, "decode")
}
