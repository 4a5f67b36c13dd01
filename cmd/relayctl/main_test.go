package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tyrowin/wsrelay/internal/relayclient"
	"github.com/stretchr/testify/require"
)

func fakeRelay(t *testing.T) *relayclient.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /clients", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"clients":["10.0.0.1","10.0.0.2"]}`))
	})
	mux.HandleFunc("POST /send/{ip}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Message sent"}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return relayclient.New(ts.URL, ts.Client())
}

func TestRun_Clients(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), fakeRelay(t), []string{"clients"}, &out))

	require.Contains(t, out.String(), "10.0.0.1")
	require.Contains(t, out.String(), "10.0.0.2")
	require.Contains(t, out.String(), "2 connected")
}

func TestRun_Send(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), fakeRelay(t), []string{"send", "10.0.0.1", "hi"}, &out))
	require.Contains(t, out.String(), "Message sent")
}

func TestRun_Usage_Errors(t *testing.T) {
	client := fakeRelay(t)
	tests := [][]string{
		nil,
		{"send", "10.0.0.1"},
		{"frobnicate"},
	}
	for _, args := range tests {
		var out bytes.Buffer
		require.Error(t, run(context.Background(), client, args, &out), "args %v", args)
	}
}
