package handler

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// HandleFileAccess serves a hosted file and records the access. The access
// log keeps the file alive; a failed log write must never block the serve.
func (h *Handler) HandleFileAccess(c echo.Context) error {
	filename := c.Param("filename")
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		return c.String(http.StatusBadRequest, "Invalid file path")
	}

	filePath := filepath.Join(h.cfg.UploadPath(), filename)
	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return c.String(http.StatusNotFound, "File not found")
		}
		log.Printf("Error: file access error: %v", err)
		return c.String(http.StatusInternalServerError, "Server error")
	}

	// Only audio files in the uploads namespace are tracked.
	if strings.EqualFold(filepath.Ext(filename), ".mp3") {
		if err := h.store.Touch(filename, time.Now()); err != nil {
			log.Printf("Warning: failed to record access for %s: %v", filename, err)
		} else {
			log.Printf("File accessed: %s", filename)
		}
	}

	return c.File(filePath)
}
