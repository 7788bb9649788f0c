package ingest

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/vjuliano/audiodrop/internal/config"
	"github.com/vjuliano/audiodrop/internal/model"
	"github.com/vjuliano/audiodrop/internal/ratelimit"
	"github.com/vjuliano/audiodrop/internal/store"
)

const (
	acceptedExt = ".mp3"
	tokenLength = 13
)

var (
	// ErrUnsupportedType is returned for anything that is not an MP3 file.
	ErrUnsupportedType = errors.New("only MP3 files are accepted")
	// ErrEmptyFile is returned when the upload carries no bytes.
	ErrEmptyFile = errors.New("empty file")
)

// TooLargeError is returned when an upload exceeds the configured size cap.
// It carries the cap in effect at upload time for user messaging.
type TooLargeError struct {
	LimitMB int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file exceeds the %dMB size limit", e.LimitMB)
}

// RateLimitedError is returned when the per-IP upload quota is exhausted.
type RateLimitedError struct {
	MaxUploads        int
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("upload limit of %d per hour reached, retry in %ds",
		e.MaxUploads, e.RetryAfterSeconds)
}

// Upload is an incoming file as handed over by the HTTP layer.
type Upload struct {
	Name string // client-supplied filename
	Size int64
	Body io.Reader
}

// Ingestor validates incoming uploads against policy and persists them.
type Ingestor struct {
	cfg     *config.Config
	store   *store.Store
	limiter *ratelimit.Limiter
}

func New(cfg *config.Config, st *store.Store, limiter *ratelimit.Limiter) *Ingestor {
	return &Ingestor{cfg: cfg, store: st, limiter: limiter}
}

// Ingest runs the full acceptance pipeline for one upload: rate-limit gate,
// extension and size validation, content sniffing, physical write, record and
// access-log creation. baseURL is "{scheme}://{host}" of the serving request.
//
// The rate-limit slot is consumed before validation, so a rejected upload
// still counts against the quota. That matches the historical behavior and
// keeps the gate cheap; do not reorder.
func (ing *Ingestor) Ingest(up Upload, clientIP, baseURL string, now time.Time) (model.FileRecord, error) {
	decision, err := ing.limiter.CheckAndRecord(clientIP, now)
	if err != nil {
		return model.FileRecord{}, fmt.Errorf("rate-limit check: %w", err)
	}
	if !decision.Allowed {
		return model.FileRecord{}, &RateLimitedError{
			MaxUploads:        ing.cfg.RateLimit().MaxUploads,
			RetryAfterSeconds: decision.RetryAfterSeconds,
		}
	}

	if !strings.EqualFold(filepath.Ext(up.Name), acceptedExt) {
		return model.FileRecord{}, ErrUnsupportedType
	}

	limitMB := ing.cfg.MaxFileSize()
	maxBytes := ing.cfg.MaxFileSizeBytes()
	if up.Size > maxBytes {
		return model.FileRecord{}, &TooLargeError{LimitMB: limitMB}
	}

	originalName := fixEncoding(up.Name)

	filename, err := ing.newStorageName(now)
	if err != nil {
		return model.FileRecord{}, err
	}
	filePath := filepath.Join(ing.cfg.UploadPath(), filename)

	size, err := ing.writeFile(filePath, up.Body, maxBytes)
	if err != nil {
		return model.FileRecord{}, err
	}

	// From here on any failure must clean up the physical file.
	if size == 0 {
		ing.removeFile(filePath)
		return model.FileRecord{}, ErrEmptyFile
	}
	if size > maxBytes {
		ing.removeFile(filePath)
		return model.FileRecord{}, &TooLargeError{LimitMB: limitMB}
	}

	// The extension is the contract; the sniff is informational only.
	if mtype, err := mimetype.DetectFile(filePath); err == nil && !mtype.Is("audio/mpeg") {
		log.Printf("Warning: %s carries a %s extension but sniffs as %s", filename, acceptedExt, mtype.String())
	}

	rec := model.FileRecord{
		ID:           filename,
		OriginalName: originalName,
		Filename:     filename,
		Size:         size,
		UploadTime:   now,
		URL:          baseURL + "/uploads/" + filename,
	}

	if err := ing.store.PutFile(rec); err != nil {
		ing.removeFile(filePath)
		return model.FileRecord{}, fmt.Errorf("store file record: %w", err)
	}

	if err := ing.store.Touch(filename, now); err != nil {
		// A record without an access-log entry would never be swept; undo.
		if _, delErr := ing.store.DeleteFile(filename); delErr != nil {
			log.Printf("Warning: failed to roll back record for %s: %v", filename, delErr)
		}
		ing.removeFile(filePath)
		return model.FileRecord{}, fmt.Errorf("init access log: %w", err)
	}

	log.Printf("Upload accepted: %s (%s, %d bytes) from %s", filename, originalName, size, clientIP)
	return rec, nil
}

// newStorageName generates a collision-free storage name of the form
// {epochMillis}-{randomToken}.mp3.
func (ing *Ingestor) newStorageName(now time.Time) (string, error) {
	for {
		token, err := generateToken(tokenLength)
		if err != nil {
			return "", err
		}

		filename := fmt.Sprintf("%d-%s%s", now.UnixMilli(), token, acceptedExt)
		if _, err := os.Stat(filepath.Join(ing.cfg.UploadPath(), filename)); err == nil {
			continue
		}
		if _, err := ing.store.GetFile(filename); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("check storage name: %w", err)
		}
		return filename, nil
	}
}

func (ing *Ingestor) writeFile(filePath string, body io.Reader, maxBytes int64) (int64, error) {
	dst, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	// Read one byte past the cap so an oversized stream is detectable even
	// when the declared size lied.
	size, err := io.Copy(dst, io.LimitReader(body, maxBytes+1))
	if err != nil {
		ing.removeFile(filePath)
		return 0, fmt.Errorf("save file: %w", err)
	}
	return size, nil
}

func (ing *Ingestor) removeFile(filePath string) {
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to clean up %s: %v", filePath, err)
	}
}

// fixEncoding repairs filenames whose UTF-8 bytes were mis-decoded as
// latin-1 by the client, which shows up as one rune per byte. If every rune
// fits in a byte and those bytes form valid UTF-8, the re-decoded form wins.
func fixEncoding(name string) string {
	raw := make([]byte, 0, len(name))
	for _, r := range name {
		if r > 0xFF {
			return name
		}
		raw = append(raw, byte(r))
	}

	if utf8.Valid(raw) {
		return string(raw)
	}
	return name
}

func generateToken(length int) (string, error) {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes)[:length], nil
}
