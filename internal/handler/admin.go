package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vjuliano/audiodrop/internal/admin"
	"github.com/vjuliano/audiodrop/internal/model"
)

const sessionCookie = "admin_session"

// HandleAdminLogin verifies credentials and issues a session cookie.
func (h *Handler) HandleAdminLogin(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request"})
	}

	if !h.admin.VerifyCredentials(req.Username, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid username or password"})
	}

	token := h.sessions.Create()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(admin.SessionTTL.Seconds()),
		HttpOnly: true,
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// HandleAdminLogout destroys the session.
func (h *Handler) HandleAdminLogout(c echo.Context) error {
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		h.sessions.Destroy(cookie.Value)
	}
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// HandleAdminCheck reports whether the caller has a live admin session.
func (h *Handler) HandleAdminCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"isLoggedIn": h.isAdminAuthenticated(c)})
}

// HandleAdminListFiles returns all hosted files, newest first.
func (h *Handler) HandleAdminListFiles(c echo.Context) error {
	if !h.isAdminAuthenticated(c) {
		return unauthorized(c)
	}

	files, err := h.admin.ListFiles()
	if err != nil {
		log.Printf("Error listing files: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}
	if files == nil {
		files = []model.FileRecord{}
	}
	return c.JSON(http.StatusOK, files)
}

// HandleAdminDeleteFile deletes one hosted file and all its records.
func (h *Handler) HandleAdminDeleteFile(c echo.Context) error {
	if !h.isAdminAuthenticated(c) {
		return unauthorized(c)
	}

	err := h.admin.DeleteFile(c.Param("id"))
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "File does not exist"})
		}
		log.Printf("Error deleting file: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// HandleAdminSetAnnouncement overwrites the site announcement.
func (h *Handler) HandleAdminSetAnnouncement(c echo.Context) error {
	if !h.isAdminAuthenticated(c) {
		return unauthorized(c)
	}

	var req struct {
		Content string `json:"content"`
		Enabled bool   `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request"})
	}

	if err := h.admin.SetAnnouncement(req.Content, req.Enabled); err != nil {
		log.Printf("Error saving announcement: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// HandleAdminGetRateLimit returns the current rate-limit policy.
func (h *Handler) HandleAdminGetRateLimit(c echo.Context) error {
	if !h.isAdminAuthenticated(c) {
		return unauthorized(c)
	}
	return c.JSON(http.StatusOK, h.cfg.RateLimit())
}

// HandleAdminSetRateLimit updates the rate-limit policy.
func (h *Handler) HandleAdminSetRateLimit(c echo.Context) error {
	if !h.isAdminAuthenticated(c) {
		return unauthorized(c)
	}

	var req struct {
		Enabled    bool `json:"enabled"`
		MaxUploads int  `json:"maxUploads"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request"})
	}

	if err := h.admin.SetRateLimitPolicy(req.Enabled, req.MaxUploads); err != nil {
		var validation *admin.ValidationError
		if errors.As(err, &validation) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": validation.Error()})
		}
		log.Printf("Error saving rate-limit policy: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// HandleAdminSetFileSize updates the upload size cap.
func (h *Handler) HandleAdminSetFileSize(c echo.Context) error {
	if !h.isAdminAuthenticated(c) {
		return unauthorized(c)
	}

	var req struct {
		MaxFileSize int `json:"maxFileSize"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request"})
	}

	if err := h.admin.SetMaxFileSize(req.MaxFileSize); err != nil {
		var validation *admin.ValidationError
		if errors.As(err, &validation) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": validation.Error()})
		}
		log.Printf("Error saving max file size: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// isAdminAuthenticated checks if the user is authenticated as admin
func (h *Handler) isAdminAuthenticated(c echo.Context) bool {
	cookie, err := c.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	return h.sessions.Valid(cookie.Value)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
}
