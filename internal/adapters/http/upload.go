package http

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxUploadSize = 10 << 20 // 10MB

var allowedExtensions = map[string]bool{
	".jpeg": true, ".jpg": true, ".png": true, ".gif": true,
	".pdf": true, ".doc": true, ".docx": true, ".txt": true,
}

// Upload stores a file under a uuid name and returns the URL a
// private_message of kind "file" should carry.
func (a *API) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	file, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	if file.Size > maxUploadSize {
		fail(c, http.StatusBadRequest, "File too large")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		fail(c, http.StatusBadRequest, "Invalid file type")
		return
	}

	name := uuid.NewString() + ext
	dst := filepath.Join(a.Cfg.UploadDir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save upload")
		fail(c, http.StatusInternalServerError, "Failed to save file")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"fileUrl":  "/uploads/" + name,
		"fileName": file.Filename,
		"fileSize": file.Size,
	})
}
