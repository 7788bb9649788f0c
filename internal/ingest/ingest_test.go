package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjuliano/audiodrop/internal/config"
	"github.com/vjuliano/audiodrop/internal/ratelimit"
	"github.com/vjuliano/audiodrop/internal/store"
)

func setupIngestor(t *testing.T, configExtra string) (*Ingestor, *store.Store, string) {
	tempDir := t.TempDir()
	uploadDir := filepath.Join(tempDir, "uploads")
	require.NoError(t, os.MkdirAll(uploadDir, 0o755))

	configPath := filepath.Join(tempDir, "config.json")
	configContent := fmt.Sprintf(`{"uploadPath": %q%s}`, uploadDir, configExtra)
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(tempDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return New(cfg, st, ratelimit.New(cfg, st)), st, uploadDir
}

// mp3Payload returns size bytes opening with an ID3v2 header, enough for
// content sniffing to classify it as audio/mpeg.
func mp3Payload(size int) []byte {
	b := make([]byte, size)
	copy(b, []byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0, 0})
	return b
}

func upload(name string, content []byte) Upload {
	return Upload{Name: name, Size: int64(len(content)), Body: bytes.NewReader(content)}
}

func TestIngestSuccess(t *testing.T) {
	ing, st, uploadDir := setupIngestor(t, "")

	now := time.Now().Truncate(time.Millisecond)
	content := mp3Payload(3 * 1024 * 1024) // 3MB against the default 5MB cap

	rec, err := ing.Ingest(upload("song.mp3", content), "10.0.0.1", "https://example.com", now)
	require.NoError(t, err)

	assert.Equal(t, rec.Filename, rec.ID)
	assert.Equal(t, "song.mp3", rec.OriginalName)
	assert.Equal(t, int64(len(content)), rec.Size)
	assert.Regexp(t, regexp.MustCompile(`^\d+-[0-9a-f]+\.mp3$`), rec.Filename)
	assert.Equal(t, "https://example.com/uploads/"+rec.Filename, rec.URL)

	// Physical file exists under the storage name.
	data, err := os.ReadFile(filepath.Join(uploadDir, rec.Filename))
	require.NoError(t, err)
	assert.Equal(t, content, data)

	// Record and access-log entry were both created.
	stored, err := st.GetFile(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.URL, stored.URL)

	lastAccess, ok, err := st.LastAccess(rec.Filename)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, now.Equal(lastAccess), "access log should be initialized to the upload time")
}

func TestIngestRejectsNonMP3Extension(t *testing.T) {
	ing, st, uploadDir := setupIngestor(t, "")

	_, err := ing.Ingest(upload("track.wav", mp3Payload(1024)), "10.0.0.1", "https://example.com", time.Now())
	assert.ErrorIs(t, err, ErrUnsupportedType)

	assertNoSideEffects(t, st, uploadDir)
}

func TestIngestAcceptsMislabeledContent(t *testing.T) {
	ing, st, uploadDir := setupIngestor(t, "")

	// The extension decides; bytes that sniff as plain text still go through.
	content := bytes.Repeat([]byte("definitely not audio "), 100)
	rec, err := ing.Ingest(upload("fake.mp3", content), "10.0.0.1", "https://example.com", time.Now())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(uploadDir, rec.Filename))
	assert.NoError(t, err)
	_, err = st.GetFile(rec.ID)
	assert.NoError(t, err)
}

func TestIngestStoreFailureLeavesNoOrphan(t *testing.T) {
	ing, st, uploadDir := setupIngestor(t, `, "rateLimit": {"enabled": false}`)
	require.NoError(t, st.Close())

	_, err := ing.Ingest(upload("song.mp3", mp3Payload(1024)), "10.0.0.1", "https://example.com", time.Now())
	assert.ErrorContains(t, err, "check storage name")

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no physical file should remain")
}

func TestIngestRejectsOversizedDeclaredSize(t *testing.T) {
	ing, st, uploadDir := setupIngestor(t, `, "maxFileSize": 5`)

	up := Upload{Name: "big.mp3", Size: 6 * 1024 * 1024, Body: bytes.NewReader(mp3Payload(16))}
	_, err := ing.Ingest(up, "10.0.0.1", "https://example.com", time.Now())

	var tooLarge *TooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, 5, tooLarge.LimitMB)

	assertNoSideEffects(t, st, uploadDir)
}

func TestIngestRejectsOversizedStream(t *testing.T) {
	ing, st, uploadDir := setupIngestor(t, `, "maxFileSize": 1`)

	// Declared size lies; the stream itself exceeds the 1MB cap.
	content := mp3Payload(1024*1024 + 16)
	up := Upload{Name: "big.mp3", Size: 100, Body: bytes.NewReader(content)}
	_, err := ing.Ingest(up, "10.0.0.1", "https://example.com", time.Now())

	var tooLarge *TooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, 1, tooLarge.LimitMB)

	assertNoSideEffects(t, st, uploadDir)
}

func TestIngestRejectsEmptyFile(t *testing.T) {
	ing, st, uploadDir := setupIngestor(t, "")

	_, err := ing.Ingest(upload("empty.mp3", nil), "10.0.0.1", "https://example.com", time.Now())
	assert.ErrorIs(t, err, ErrEmptyFile)

	assertNoSideEffects(t, st, uploadDir)
}

func TestIngestRateLimited(t *testing.T) {
	ing, _, _ := setupIngestor(t, `, "rateLimit": {"enabled": true, "maxUploads": 1}`)

	now := time.Now()
	_, err := ing.Ingest(upload("one.mp3", mp3Payload(1024)), "10.0.0.1", "https://example.com", now)
	require.NoError(t, err)

	_, err = ing.Ingest(upload("two.mp3", mp3Payload(1024)), "10.0.0.1", "https://example.com", now)
	var rateLimited *RateLimitedError
	require.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, 1, rateLimited.MaxUploads)
	assert.Equal(t, 3600, rateLimited.RetryAfterSeconds)
}

func TestRejectedUploadStillConsumesSlot(t *testing.T) {
	ing, st, _ := setupIngestor(t, `, "rateLimit": {"enabled": true, "maxUploads": 2}`)

	now := time.Now()
	_, err := ing.Ingest(upload("track.wav", mp3Payload(1024)), "10.0.0.1", "https://example.com", now)
	require.ErrorIs(t, err, ErrUnsupportedType)

	// The gate runs before validation, so the failed upload used a slot.
	stamps, err := st.Window("10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, stamps, 1)
}

func TestDisabledRateLimitAllowsBursts(t *testing.T) {
	ing, _, _ := setupIngestor(t, `, "rateLimit": {"enabled": false, "maxUploads": 3}`)

	now := time.Now()
	for i := 0; i < 10; i++ {
		_, err := ing.Ingest(upload("song.mp3", mp3Payload(1024)), "10.0.0.1", "https://example.com", now)
		require.NoError(t, err, "upload %d should succeed with the rate limit disabled", i+1)
	}
}

func TestStorageNamesNeverCollide(t *testing.T) {
	ing, _, _ := setupIngestor(t, "")

	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		rec, err := ing.Ingest(upload("song.mp3", mp3Payload(1024)), "10.0.0.1", "https://example.com", now)
		require.NoError(t, err)
		assert.False(t, seen[rec.Filename], "storage name %s was reused", rec.Filename)
		seen[rec.Filename] = true
	}
}

func TestFixEncoding(t *testing.T) {
	// UTF-8 bytes mis-decoded as latin-1: "ä" arrives as "Ã¤".
	assert.Equal(t, "ä.mp3", fixEncoding("Ã¤.mp3"))

	// Plain ASCII passes through untouched.
	assert.Equal(t, "song.mp3", fixEncoding("song.mp3"))

	// Already-correct multibyte names are left alone.
	assert.Equal(t, "歌曲.mp3", fixEncoding("歌曲.mp3"))
}

func assertNoSideEffects(t *testing.T, st *store.Store, uploadDir string) {
	t.Helper()

	files, err := st.ListFiles()
	require.NoError(t, err)
	assert.Empty(t, files, "no file record should exist")

	accessLog, err := st.AccessLog()
	require.NoError(t, err)
	assert.Empty(t, accessLog, "no access-log entry should exist")

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no physical file should remain")
}
