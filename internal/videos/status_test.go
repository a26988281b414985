package videos

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/basket-lsat/backend/internal/models"
	"github.com/basket-lsat/backend/internal/mux"
)

// fakeMux is an in-memory MuxAPI for handler tests.
type fakeMux struct {
	uploads map[string]*mux.Upload
	assets  map[string]*mux.Asset
	fail    bool
	calls   int
}

func newFakeMux() *fakeMux {
	return &fakeMux{uploads: make(map[string]*mux.Upload), assets: make(map[string]*mux.Asset)}
}

func (f *fakeMux) CreateUpload(_ context.Context, params mux.CreateUploadParams) (*mux.Upload, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("provider down")
	}
	u := &mux.Upload{ID: "upload-new", Status: mux.UploadStatusWaiting, URL: "https://storage.example/upload-new"}
	f.uploads[u.ID] = u
	return u, nil
}

func (f *fakeMux) GetUpload(_ context.Context, id string) (*mux.Upload, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("provider down")
	}
	u, ok := f.uploads[id]
	if !ok {
		return nil, &mux.APIError{StatusCode: http.StatusNotFound}
	}
	return u, nil
}

func (f *fakeMux) GetAsset(_ context.Context, id string) (*mux.Asset, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("provider down")
	}
	a, ok := f.assets[id]
	if !ok {
		return nil, &mux.APIError{StatusCode: http.StatusNotFound}
	}
	return a, nil
}

func checkStatus(t *testing.T, store Store, api MuxAPI, id uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(store, api, nil)
	router := gin.New()
	router.POST("/admin/videos/:id/check-status", h.CheckStatus)

	req := httptest.NewRequest(http.MethodPost, "/admin/videos/"+id.String()+"/check-status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCheckStatusReadyShortCircuits(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	api := newFakeMux()
	v := store.add(&models.Video{Status: models.VideoStatusReady, MuxAssetID: "asset-1", MuxPlaybackID: "pb-1"})

	w := checkStatus(t, store, api, v.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if api.calls != 0 {
		t.Fatalf("provider called %d times for a ready record", api.calls)
	}
	if !strings.Contains(w.Body.String(), `"ready"`) {
		t.Fatalf("body = %s, want ready status", w.Body.String())
	}
}

func TestCheckStatusResolvesUploadToReady(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	api := newFakeMux()
	v := store.add(&models.Video{Status: models.VideoStatusProcessing, MuxUploadID: "upload-1"})
	api.uploads["upload-1"] = &mux.Upload{ID: "upload-1", Status: mux.UploadStatusAssetCreated, AssetID: "asset-2"}
	api.assets["asset-2"] = &mux.Asset{ID: "asset-2", Status: mux.AssetStatusReady, PlaybackIDs: []mux.PlaybackID{{ID: "pb-2", Policy: "public"}}}

	w := checkStatus(t, store, api, v.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if v.Status != models.VideoStatusReady || v.MuxAssetID != "asset-2" || v.MuxPlaybackID != "pb-2" {
		t.Fatalf("record not resolved: %+v", v)
	}
}

func TestCheckStatusMarksTerminalUploadErrored(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	api := newFakeMux()
	v := store.add(&models.Video{Status: models.VideoStatusProcessing, MuxUploadID: "upload-2"})
	api.uploads["upload-2"] = &mux.Upload{ID: "upload-2", Status: mux.UploadStatusTimedOut}

	for i := 0; i < 2; i++ {
		w := checkStatus(t, store, api, v.ID)
		if w.Code != http.StatusOK {
			t.Fatalf("call %d: status = %d, want 200", i, w.Code)
		}
	}
	if v.Status != models.VideoStatusErrored {
		t.Fatalf("status = %s, want errored", v.Status)
	}
}

func TestCheckStatusStillProcessing(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	api := newFakeMux()
	v := store.add(&models.Video{Status: models.VideoStatusProcessing, MuxUploadID: "upload-3"})
	api.uploads["upload-3"] = &mux.Upload{ID: "upload-3", Status: mux.UploadStatusWaiting}

	w := checkStatus(t, store, api, v.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if v.Status != models.VideoStatusProcessing {
		t.Fatalf("status = %s, want processing", v.Status)
	}
	if !strings.Contains(w.Body.String(), `"processing"`) {
		t.Fatalf("body = %s, want processing status", w.Body.String())
	}
}

func TestCheckStatusQueriesAssetDirectly(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	api := newFakeMux()
	v := store.add(&models.Video{Status: models.VideoStatusProcessing, MuxUploadID: "upload-4", MuxAssetID: "asset-4"})
	api.assets["asset-4"] = &mux.Asset{ID: "asset-4", Status: mux.AssetStatusReady, PlaybackIDs: []mux.PlaybackID{{ID: "pb-4"}}}

	w := checkStatus(t, store, api, v.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if v.Status != models.VideoStatusReady || v.MuxPlaybackID != "pb-4" {
		t.Fatalf("record not resolved: %+v", v)
	}
}

func TestCheckStatusProviderErrorLeavesRecordUntouched(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	api := newFakeMux()
	v := store.add(&models.Video{Status: models.VideoStatusProcessing, MuxUploadID: "upload-5"})
	api.fail = true

	w := checkStatus(t, store, api, v.ID)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if v.Status != models.VideoStatusProcessing {
		t.Fatalf("status = %s, want processing", v.Status)
	}
}

func TestCheckStatusUnknownVideo(t *testing.T) {
	t.Parallel()
	w := checkStatus(t, newFakeStore(), newFakeMux(), uuid.New())
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestCheckStatusNoIdentifiers(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	v := store.add(&models.Video{Status: models.VideoStatusProcessing})

	w := checkStatus(t, store, newFakeMux(), v.ID)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
