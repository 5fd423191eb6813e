package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewServerDefaults(t *testing.T) {
	srv := New(":8080", http.NewServeMux())

	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
	assert.Zero(t, srv.WriteTimeout, "completions may stream for tens of seconds")
}

func TestShutdownIdleServer(t *testing.T) {
	srv := New(":0", http.NewServeMux())
	assert.NoError(t, Shutdown(srv))
}
