package handler

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vjuliano/audiodrop/internal/model"
)

// HandleGetAnnouncement returns the site announcement. Read failures degrade
// to an empty, disabled announcement rather than erroring the page.
func (h *Handler) HandleGetAnnouncement(c echo.Context) error {
	announcement, err := h.admin.Announcement()
	if err != nil {
		log.Printf("Warning: failed to read announcement: %v", err)
		return c.JSON(http.StatusOK, model.Announcement{})
	}
	return c.JSON(http.StatusOK, announcement)
}

// HandleGetConfig exposes the public slice of the runtime config: the upload
// size cap the form needs for client-side checks.
func (h *Handler) HandleGetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"maxFileSize": h.cfg.MaxFileSize()})
}
