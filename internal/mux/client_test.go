package mux

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateUploadSendsPassthrough(t *testing.T) {
	t.Parallel()
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/video/v1/uploads" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "token-id" || pass != "token-secret" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"data":{"id":"upload-1","status":"waiting","url":"https://storage.example/u1"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token-id", "token-secret")
	upload, err := c.CreateUpload(context.Background(), CreateUploadParams{Passthrough: `{"videoId":"abc"}`})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if upload.ID != "upload-1" || upload.URL != "https://storage.example/u1" {
		t.Fatalf("upload = %+v", upload)
	}

	settings, _ := gotBody["new_asset_settings"].(map[string]interface{})
	if settings["passthrough"] != `{"videoId":"abc"}` {
		t.Fatalf("passthrough = %v", settings["passthrough"])
	}
	if gotBody["cors_origin"] != "*" {
		t.Fatalf("cors_origin = %v", gotBody["cors_origin"])
	}
}

func TestGetAssetDecodesEnvelope(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/video/v1/assets/asset-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"id":"asset-1","status":"ready","playback_ids":[{"id":"pb-1","policy":"public"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "id", "secret")
	asset, err := c.GetAsset(context.Background(), "asset-1")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset.Status != AssetStatusReady {
		t.Fatalf("status = %q, want ready", asset.Status)
	}
	if asset.FirstPlaybackID() != "pb-1" {
		t.Fatalf("playback id = %q, want pb-1", asset.FirstPlaybackID())
	}
}

func TestAPIErrorCarriesMessages(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"messages":["invalid credentials"]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", "creds")
	_, err := c.GetUpload(context.Background(), "upload-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", apiErr.StatusCode)
	}
	if len(apiErr.Messages) != 1 || apiErr.Messages[0] != "invalid credentials" {
		t.Fatalf("messages = %v", apiErr.Messages)
	}
}

func TestUploadTerminalFailure(t *testing.T) {
	t.Parallel()
	for _, status := range []string{UploadStatusErrored, UploadStatusCancelled, UploadStatusTimedOut} {
		if !(&Upload{Status: status}).TerminalFailure() {
			t.Errorf("%s not terminal", status)
		}
	}
	for _, status := range []string{UploadStatusWaiting, UploadStatusAssetCreated} {
		if (&Upload{Status: status}).TerminalFailure() {
			t.Errorf("%s reported terminal", status)
		}
	}
}
