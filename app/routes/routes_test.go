package routes

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupRoutes(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectedHeader string
	}{
		{
			name:           "Health check",
			method:         "GET",
			path:           "/healthz",
			expectedStatus: http.StatusOK,
			expectedHeader: "text/plain; charset=utf-8",
		},
		{
			name:           "Chain info",
			method:         "GET",
			path:           "/rpc/chain",
			expectedStatus: http.StatusOK,
			expectedHeader: "application/json",
		},
		{
			name:           "Registry posts",
			method:         "GET",
			path:           "/rpc/posts",
			expectedStatus: http.StatusOK,
			expectedHeader: "application/json",
		},
		{
			name:           "Missing registry post",
			method:         "GET",
			path:           "/rpc/posts/99",
			expectedStatus: http.StatusNotFound,
			expectedHeader: "application/json",
		},
		{
			name:           "API posts",
			method:         "GET",
			path:           "/api/posts",
			expectedStatus: http.StatusOK,
			expectedHeader: "application/json",
		},
		{
			name:           "Indexed posts",
			method:         "GET",
			path:           "/api/index/posts",
			expectedStatus: http.StatusOK,
			expectedHeader: "application/json",
		},
		{
			name:           "Non-numeric post id",
			method:         "GET",
			path:           "/api/posts/abc",
			expectedStatus: http.StatusNotFound,
			expectedHeader: "application/json",
		},
		{
			name:           "Unknown route",
			method:         "GET",
			path:           "/nope",
			expectedStatus: http.StatusNotFound,
			expectedHeader: "application/json",
		},
		{
			name:           "Wrong method",
			method:         "DELETE",
			path:           "/api/posts/1",
			expectedStatus: http.StatusMethodNotAllowed,
			expectedHeader: "application/json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.expectedHeader, w.Header().Get("Content-Type"))
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestSetupRoutesOptionalSurfaces(t *testing.T) {
	router := SetupRoutes(Dependencies{})

	env := &testEnv{router: router}
	for _, path := range []string{"/rpc/chain", "/api/posts", "/api/index/posts"} {
		w := env.do(t, "GET", path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
