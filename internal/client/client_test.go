package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/awsprov/internal/testlib"
)

type echo struct {
	Name string `json:"name"`
}

func TestClientDo(t *testing.T) {
	var calls int64
	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"pong"}`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such thing", http.StatusNotFound)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "database exploded", http.StatusInternalServerError)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient("test", ts.URL+"/", testlib.MakeLogger(t))
	c.SetHeader("Authorization", "Bearer secret")

	t.Run("decodes answers", func(t *testing.T) {
		var out echo
		err := c.Do(context.Background(), http.MethodPost, &echo{Name: "ping"}, &out, "/echo")
		require.NoError(t, err)
		assert.Equal(t, "pong", out.Name)
	})

	t.Run("not found", func(t *testing.T) {
		err := c.Do(context.Background(), http.MethodGet, nil, nil, "/missing")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "no such thing")
	})

	t.Run("server errors trip the breaker", func(t *testing.T) {
		atomic.StoreInt64(&calls, 0)
		for i := 0; i < 10; i++ {
			err := c.Do(context.Background(), http.MethodGet, nil, nil, "/broken")
			require.Error(t, err)
			assert.False(t, IsNotFound(err))
		}

		// Five consecutive failures open the circuit; later calls never
		// reach the server.
		assert.EqualValues(t, 5, atomic.LoadInt64(&calls))

		err := c.Do(context.Background(), http.MethodPost, &echo{}, nil, "/echo")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "currently unavailable")
	})
}
