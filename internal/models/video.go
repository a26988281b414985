package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoStatus represents the ingestion lifecycle of a video.
type VideoStatus string

const (
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusErrored    VideoStatus = "errored"
)

// Valid reports whether s is a known status value.
func (s VideoStatus) Valid() bool {
	switch s {
	case VideoStatusProcessing, VideoStatusReady, VideoStatusErrored:
		return true
	}
	return false
}

// Video is a lesson video hosted on Mux. The file itself never passes through
// this service: the browser uploads directly to the Mux upload URL and the
// record here tracks the external ids until the asset is playable.
//
// A record in ready state always has a non-empty asset and playback id, and
// never moves back to processing.
type Video struct {
	ID            uuid.UUID   `json:"id"`
	Title         string      `json:"title"`
	Section       string      `json:"section"`
	MuxUploadID   string      `json:"mux_upload_id,omitempty"`
	MuxAssetID    string      `json:"mux_asset_id,omitempty"`
	MuxPlaybackID string      `json:"mux_playback_id,omitempty"`
	Status        VideoStatus `json:"status"`
	CreatedBy     uuid.UUID   `json:"created_by"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
