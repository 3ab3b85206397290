package watch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apinni/apinni/internal/generator"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestDevServer_Routes(t *testing.T) {
	rs := NewReloadServer(nil)
	defer rs.Close()
	ds := NewDevServer(rs, nil)
	h := ds.Handler()

	w := get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"starting"`)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/types/api").Code)

	pass := uuid.New()
	ds.Update(&generator.Result{
		PassID: pass,
		Domains: []*generator.DomainOutput{{
			Domain:     "api",
			Types:      "// Auto-generated API types for domain: api\n",
			SchemaJSON: []byte(`{"endpoints":[]}`),
		}},
	}, nil)

	w = get(t, h, "/types/api")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "// Auto-generated API types for domain: api\n", w.Body.String())

	w = get(t, h, "/schema/api")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"endpoints":[]}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, h, "/schema/admin").Code)

	w = get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, healthResponse{Status: "ok", Pass: pass.String(), Domains: []string{"api"}}, health)

	ds.Update(nil, errors.New("boom"))
	w = get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"boom"`)
	assert.Equal(t, http.StatusOK, get(t, h, "/types/api").Code)
}
