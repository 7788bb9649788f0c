package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vjuliano/audiodrop/internal/ingest"
)

// HandleUpload accepts a multipart MP3 upload and returns its public URL.
func (h *Handler) HandleUpload(c echo.Context) error {
	file, header, err := c.Request().FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No file was uploaded"})
	}
	defer file.Close()

	up := ingest.Upload{
		Name: header.Filename,
		Size: header.Size,
		Body: file,
	}
	baseURL := c.Scheme() + "://" + c.Request().Host

	rec, err := h.ingestor.Ingest(up, c.RealIP(), baseURL, time.Now())
	if err != nil {
		return h.uploadError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"url":          rec.URL,
		"originalName": rec.OriginalName,
	})
}

func (h *Handler) uploadError(c echo.Context, err error) error {
	var rateLimited *ingest.RateLimitedError
	if errors.As(err, &rateLimited) {
		// remainingTime is reported in minutes, rounded up.
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error": fmt.Sprintf("Too many uploads, limited to %d per 60 minutes, please try again later",
				rateLimited.MaxUploads),
			"remainingTime": (rateLimited.RetryAfterSeconds + 59) / 60,
		})
	}

	var tooLarge *ingest.TooLargeError
	if errors.As(err, &tooLarge) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": fmt.Sprintf("File size exceeds the %dMB limit", tooLarge.LimitMB),
		})
	}

	if errors.Is(err, ingest.ErrUnsupportedType) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Only MP3 files are allowed"})
	}
	if errors.Is(err, ingest.ErrEmptyFile) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No file was uploaded"})
	}

	log.Printf("Error: upload failed: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
}
