package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusRendersWorkerTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/debug/workers", r.URL.Path)
		statuses := []workerStatus{
			{Rank: 0, StateName: "WaitHostCmd", CmpCount: 3, RemoteCmpCount: 2},
			{Rank: 1, StateName: "WaitTrigger", CmpCount: 1, RemoteCmpCount: 0},
		}
		require.NoError(t, json.NewEncoder(w).Encode(statuses))
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	require.NoError(t, runStatus(client, srv.URL))
}

func TestRunStatusPropagatesDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	err := runStatus(client, srv.URL)
	assert.Error(t, err)
}

func TestRunSubmitPostsRankAndSucceeds(t *testing.T) {
	var gotBody map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cmdq", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	require.NoError(t, runSubmit(client, srv.URL, 2))
	assert.Equal(t, 2, gotBody["rank"])
}

func TestRunSubmitReturnsErrorOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rank out of range", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	err := runSubmit(client, srv.URL, 99)
	assert.Error(t, err)
}
