package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPing_HitsTarget(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(srv.URL, zap.NewNop())
	p.Ping(context.Background())
	assert.Equal(t, 1, hits)
}

func TestPing_DisabledWithoutURL(t *testing.T) {
	t.Parallel()

	p := New("", zap.NewNop())
	assert.False(t, p.Enabled())
	p.Ping(context.Background())
}

func TestPing_ServerErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(srv.URL, zap.NewNop())
	p.Ping(context.Background())
}
