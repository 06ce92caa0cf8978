package handler

import (
	"errors"
	"net/http"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/internal/service"
	"muichiro-nexus/pkg/log"

	"github.com/gin-gonic/gin"
)

// FileHandler serves upload, listing, download and deletion of files.
type FileHandler struct {
	uploadService service.UploadService
	fileService   service.FileService
	maxUploadSize int64
}

func NewFileHandler(uploadService service.UploadService, fileService service.FileService, maxUploadMB int64) *FileHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &FileHandler{
		uploadService: uploadService,
		fileService:   fileService,
		maxUploadSize: maxUploadMB << 20,
	}
}

// Upload accepts a multipart form with a single "file" field.
func (h *FileHandler) Upload(c *gin.Context) {
	user := currentUser(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return
		}
		respondServiceError(c, service.ErrEmptyFile)
		return
	}
	body, err := fh.Open()
	if err != nil {
		log.Errorf("[FileHandler] opening multipart file failed: %v", err)
		respondError(c, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	defer body.Close()

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := model.MimeTypeByExtension(fh.Filename); byExt != "" {
			mimeType = byExt
		}
	}

	file, err := h.uploadService.Upload(c.Request.Context(), user, service.UploadInput{
		FileName: fh.Filename,
		MimeType: mimeType,
		Size:     fh.Size,
		Body:     body,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, "File uploaded successfully", gin.H{"file": file})
}

// List returns the caller's files, newest first.
func (h *FileHandler) List(c *gin.Context) {
	files, err := h.fileService.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		log.Errorf("[FileHandler] listing files failed: %v", err)
		respondServiceError(c, err)
		return
	}
	respondOK(c, "Files retrieved", files)
}

func (h *FileHandler) Download(c *gin.Context) {
	url, err := h.fileService.DownloadURL(c.Request.Context(), currentUser(c).ID, c.Query("path"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, "Download URL created", gin.H{"url": url})
}

func (h *FileHandler) Delete(c *gin.Context) {
	err := h.fileService.Delete(c.Request.Context(), currentUser(c).ID, c.Param("id"), c.Query("path"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, "File deleted successfully", nil)
}
