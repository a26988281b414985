package pdfs

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basket-lsat/backend/internal/models"
	"github.com/basket-lsat/backend/pkg/response"
	"github.com/basket-lsat/backend/pkg/storage"
)

const maxTitleLen = 200

// Handler handles study-guide HTTP endpoints.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a pdfs handler.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// Upload handles POST /admin/pdfs/upload (multipart: file, title, section).
// The file is streamed to the S3 materials bucket; on a DB insert failure the
// uploaded object is removed again.
func (h *Handler) Upload(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	section := c.PostForm("section")
	if title == "" || len(title) > maxTitleLen {
		response.BadRequest(c, "title must be between 1 and 200 characters")
		return
	}
	if !models.ValidSection(section) {
		response.BadRequest(c, "invalid section. Must be one of: introduction, lr, rc, final-tips")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.ValidatePDFFileType(contentType, fileHeader.Filename) {
		response.BadRequest(c, "only PDF files are allowed")
		return
	}
	if fileHeader.Size > storage.MaxPDFFileSize {
		response.BadRequest(c, "file size must be less than 50MB")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer file.Close()

	key := storage.PDFKey(section, fmt.Sprintf("%d-%06d.pdf", time.Now().UnixMilli(), rand.Intn(1000000)))
	if _, err := h.s3.Upload(c.Request.Context(), key, "application/pdf", file, fileHeader.Size); err != nil {
		h.logger.Error("upload pdf to s3 failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload PDF")
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	pdf := &models.PDF{
		Title:     title,
		Section:   section,
		S3Key:     key,
		FileName:  fileHeader.Filename,
		FileSize:  fileHeader.Size,
		CreatedBy: userID,
	}
	if err := h.repo.Create(c.Request.Context(), pdf); err != nil {
		if delErr := h.s3.DeleteObject(c.Request.Context(), key); delErr != nil {
			h.logger.Error("compensating s3 delete failed", zap.Error(delErr), zap.String("key", key))
		}
		h.logger.Error("create pdf record failed", zap.Error(err))
		response.Internal(c, "failed to create PDF record")
		return
	}

	response.Created(c, pdf)
}

// List handles GET /materials/pdfs. Members only.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list pdfs failed", zap.Error(err))
		response.Internal(c, "failed to list PDFs")
		return
	}
	response.OK(c, list)
}

// GenerateDownloadURL handles GET /materials/pdfs/:id/download-url. Members
// only; returns a presigned GET URL for the stored object.
func (h *Handler) GenerateDownloadURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid pdf id")
		return
	}
	pdf, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "pdf not found")
			return
		}
		response.Internal(c, "failed to load pdf")
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), pdf.S3Key, expire)
	if err != nil {
		h.logger.Error("presign pdf download failed", zap.Error(err), zap.String("pdf_id", id.String()))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(expire.Seconds())})
}

// Delete handles DELETE /admin/pdfs/:id. Removes the object and the record.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid pdf id")
		return
	}
	pdf, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "pdf not found")
			return
		}
		response.Internal(c, "failed to load pdf")
		return
	}
	if h.s3 != nil {
		if err := h.s3.DeleteObject(c.Request.Context(), pdf.S3Key); err != nil {
			h.logger.Warn("delete pdf object failed", zap.Error(err), zap.String("key", pdf.S3Key))
		}
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete pdf")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}
