package server

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	conf "github.com/webitel/rocrate-exporter/config"
)

type fakeRegistry struct{ registered, deregistered atomic.Int32 }

func (f *fakeRegistry) Register() error   { f.registered.Add(1); return nil }
func (f *fakeRegistry) Deregister() error { f.deregistered.Add(1); return nil }

func TestServerLifecycle(t *testing.T) {
	reg := &fakeRegistry{}
	exit := make(chan error, 1)
	srv, err := BuildServer(&conf.HTTPConfig{Address: "127.0.0.1:0"}, reg, exit)
	require.NoError(t, err)

	srv.Router.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	go srv.Start()

	url := fmt.Sprintf("http://%s/ping", srv.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && string(b) == "pong"
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/missing", srv.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, srv.Stop())
	assert.EqualValues(t, 1, reg.registered.Load())
	assert.EqualValues(t, 1, reg.deregistered.Load())
	select {
	case err := <-exit:
		t.Fatalf("unexpected exit error: %v", err)
	default:
	}
}
