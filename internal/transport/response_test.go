package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusTeapot, "nope", map[string]string{"field": "required"})

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"nope","details":{"field":"required"}}`, rec.Body.String())
}

func TestStreamEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	require.True(t, StartStream(rec))
	require.NoError(t, WriteEvent(rec, "services", map[string]interface{}{"isLoading": true}))
	require.NoError(t, WriteComment(rec, "ping"))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: services\ndata: {\"isLoading\":true}\n\n: ping\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}
