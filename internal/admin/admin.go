package admin

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"

	"github.com/vjuliano/audiodrop/internal/config"
	"github.com/vjuliano/audiodrop/internal/model"
	"github.com/vjuliano/audiodrop/internal/store"
)

const (
	minUploads  = 1
	maxUploads  = 999
	minFileSize = 1   // MB
	maxFileSize = 100 // MB

	// disabledMaxUploads is what the stored quota resets to whenever the
	// rate limit is switched off.
	disabledMaxUploads = 3
)

// ErrNotFound is returned when the targeted file does not exist.
var ErrNotFound = errors.New("file not found")

// ValidationError marks admin input that is out of range.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// Manager owns every admin-triggered mutation: file deletion, the
// announcement, the rate-limit policy and the size cap. All config writes go
// through the shared *config.Config handle and are persisted synchronously.
type Manager struct {
	cfg   *config.Config
	store *store.Store
}

func NewManager(cfg *config.Config, st *store.Store) *Manager {
	return &Manager{cfg: cfg, store: st}
}

// ListFiles returns all file records, newest first.
func (m *Manager) ListFiles() ([]model.FileRecord, error) {
	return m.store.ListFiles()
}

// DeleteFile removes a hosted file: physical file first (absence tolerated),
// then its record, then its access-log entry. Deleting an unknown or
// already-deleted id returns ErrNotFound without side effects.
func (m *Manager) DeleteFile(id string) error {
	rec, err := m.store.GetFile(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	filePath := filepath.Join(m.cfg.UploadPath(), rec.Filename)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file %s: %w", filePath, err)
	}

	if _, err := m.store.DeleteFile(rec.ID); err != nil {
		return fmt.Errorf("delete record %s: %w", rec.ID, err)
	}
	if err := m.store.DeleteAccess(rec.Filename); err != nil {
		log.Printf("Warning: failed to delete access-log entry for %s: %v", rec.Filename, err)
	}

	log.Printf("Admin deleted file: %s", rec.Filename)
	return nil
}

// Announcement returns the current announcement.
func (m *Manager) Announcement() (model.Announcement, error) {
	return m.store.Announcement()
}

// SetAnnouncement overwrites the announcement. Content is not validated.
func (m *Manager) SetAnnouncement(content string, enabled bool) error {
	return m.store.SetAnnouncement(model.Announcement{Content: content, Enabled: enabled})
}

// SetRateLimitPolicy updates the upload quota. When enabling, maxUploads
// must be within [1,999]; when disabling, the stored quota resets to the
// default regardless of input.
func (m *Manager) SetRateLimitPolicy(enabled bool, uploads int) error {
	if enabled && (uploads < minUploads || uploads > maxUploads) {
		return &ValidationError{msg: fmt.Sprintf("max uploads must be between %d and %d", minUploads, maxUploads)}
	}

	policy := model.RateLimitPolicy{Enabled: enabled, MaxUploads: uploads}
	if !enabled {
		policy.MaxUploads = disabledMaxUploads
	}
	return m.cfg.SetRateLimit(policy)
}

// SetMaxFileSize updates the upload size cap in megabytes, within [1,100].
func (m *Manager) SetMaxFileSize(mb int) error {
	if mb < minFileSize || mb > maxFileSize {
		return &ValidationError{msg: fmt.Sprintf("file size must be between %d and %dMB", minFileSize, maxFileSize)}
	}
	return m.cfg.SetMaxFileSize(mb)
}

// VerifyCredentials compares the given credentials against the configured
// admin account. The reason for a failure is deliberately not reported.
func (m *Manager) VerifyCredentials(username, password string) bool {
	if username != m.cfg.AdminUsername() {
		return false
	}
	hash := m.cfg.AdminPasswordHash()
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
