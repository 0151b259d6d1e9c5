// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mobiletoly/go-offsync/internal/auth"
	"github.com/mobiletoly/go-offsync/offsync"
)

type wireNote struct {
	ID        string            `json:"id"`
	DocID     string            `json:"doc_id"`
	Title     string            `json:"title"`
	State     offsync.SyncState `json:"sync_state"`
	CreatedAt time.Time         `json:"created_at"`
}

func (n *wireNote) RecordID() string                     { return n.ID }
func (n *wireNote) SetRecordID(id string)                { n.ID = id }
func (n *wireNote) ParentID() string                     { return n.DocID }
func (n *wireNote) SyncState() offsync.SyncState         { return n.State }
func (n *wireNote) SetSyncState(state offsync.SyncState) { n.State = state }
func (n *wireNote) CreatedTime() time.Time               { return n.CreatedAt }

func newTestClient(t *testing.T, handler http.Handler) *Client[*wireNote] {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	token := func(context.Context) (string, error) { return "test-token", nil }
	c := NewClient(srv.URL, "notes", func() *wireNote { return &wireNote{} }, token)
	c.SourceID = "device-1"
	return c
}

func TestClientCreate(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/notes", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, "device-1", r.Header.Get("X-Source-ID"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in wireNote
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, "loc-1", in.ID)

		in.ID = "srv-1"
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(&in))
	}))

	out, err := client.Create(context.Background(), &wireNote{ID: "loc-1", DocID: "doc-1", Title: "hello"})
	require.NoError(t, err)
	require.Equal(t, "srv-1", out.ID)
	require.Equal(t, "hello", out.Title)
}

func TestClientUpdateTargetsRecordPath(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/notes/srv-1", r.URL.Path)

		var in wireNote
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.Title = "normalized " + in.Title
		require.NoError(t, json.NewEncoder(w).Encode(&in))
	}))

	out, err := client.Update(context.Background(), &wireNote{ID: "srv-1", Title: "title"})
	require.NoError(t, err)
	require.Equal(t, "normalized title", out.Title)
}

func TestClientContextDeviceOverridesSourceID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "device-override", r.Header.Get("X-Source-ID"))
		require.NoError(t, json.NewEncoder(w).Encode(&wireNote{ID: "srv-1"}))
	}))

	ctx := auth.WithDeviceID(context.Background(), "device-override")
	_, err := client.Create(ctx, &wireNote{ID: "loc-1"})
	require.NoError(t, err)
}

func TestClientDeleteTreats404AsSuccess(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/notes/srv-1", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))

	// Replays are at-least-once; a record already gone is a success.
	require.NoError(t, client.Delete(context.Background(), "srv-1"))
	require.Equal(t, 1, calls)
}

func TestClientServerErrorIsRemoteError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage exploded", http.StatusInternalServerError)
	}))

	_, err := client.Create(context.Background(), &wireNote{ID: "loc-1"})
	require.Error(t, err)

	var rerr *offsync.RemoteError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, http.StatusInternalServerError, rerr.StatusCode)
	require.Contains(t, rerr.Error(), "storage exploded")
}

func TestClientConnectionErrorIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listens anymore

	token := func(context.Context) (string, error) { return "t", nil }
	client := NewClient(srv.URL, "notes", func() *wireNote { return &wireNote{} }, token)

	_, err := client.Get(context.Background(), "srv-1")
	var rerr *offsync.RemoteError
	require.True(t, errors.As(err, &rerr))
	require.Zero(t, rerr.StatusCode, "the request never reached a server")
}

func TestClientList(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "doc 1", r.URL.Query().Get("parent_id"))
		notes := []*wireNote{
			{ID: "srv-1", DocID: "doc 1", Title: "a"},
			{ID: "srv-2", DocID: "doc 1", Title: "b"},
		}
		require.NoError(t, json.NewEncoder(w).Encode(notes))
	}))

	out, err := client.List(context.Background(), "doc 1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "srv-1", out[0].ID)
	require.Equal(t, "b", out[1].Title)
}

func TestClientGet(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/notes/srv-1", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(&wireNote{ID: "srv-1", Title: "found"}))
	}))

	out, err := client.Get(context.Background(), "srv-1")
	require.NoError(t, err)
	require.Equal(t, "found", out.Title)
}

func TestClientTokenFailure(t *testing.T) {
	called := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	client.Token = func(context.Context) (string, error) { return "", errors.New("keychain locked") }

	_, err := client.Create(context.Background(), &wireNote{ID: "loc-1"})
	require.Error(t, err)
	require.False(t, called, "no request goes out without a token")
}
