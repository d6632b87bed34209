package debugapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/entity-renderer/internal/webhook"
)

func TestWebhookRoutes(t *testing.T) {
	hooks := webhook.NewManager(webhook.Options{Source: "viewer:test"})
	defer hooks.Stop()
	s := NewServer("127.0.0.1:0", Deps{
		Renderer:   &fakeRenderer{},
		Webhooks:   hooks,
		Registerer: prometheus.NewRegistry(),
	})
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/webhooks", `{"url":"http://hooks.local","signals":["enterEntity"],"secret":"k"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created webhook.Hook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, uint64(1), created.ID)
	assert.Empty(t, created.Secret)

	rec = do(t, h, http.MethodPost, "/webhooks", `{"url":"http://hooks.local"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/webhooks/1/active", `{"active":false}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	got, _ := hooks.Get(1)
	assert.False(t, got.Active)
	assert.Equal(t, "k", got.Secret, "секрет хранится, но не отдаётся")

	rec = do(t, h, http.MethodGet, "/webhooks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []webhook.Hook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Secret)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/webhooks/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/webhooks/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/webhooks/7/active", `{"active":true}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/webhooks/abc", "").Code, "id только числовой")
}
