package models

import (
	"time"

	"github.com/google/uuid"
)

// PDF is a study guide stored in the S3 materials bucket.
type PDF struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Section   string    `json:"section"`
	S3Key     string    `json:"s3_key"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
