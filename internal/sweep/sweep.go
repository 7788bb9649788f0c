package sweep

import (
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/vjuliano/audiodrop/internal/store"
)

const (
	// TTL is the inactivity threshold after which a file is purged.
	TTL = 24 * time.Hour
	// DefaultInterval is how often the sweeper runs.
	DefaultInterval = time.Hour
)

// Sweeper periodically deletes files that have not been accessed within the
// TTL. It walks the access log, so a file record without an access-log entry
// is never picked up by a sweep.
type Sweeper struct {
	store      *store.Store
	uploadPath string
	interval   time.Duration
	stopChan   chan struct{}
	running    atomic.Bool
}

func New(st *store.Store, uploadPath string, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		store:      st,
		uploadPath: uploadPath,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start runs one sweep immediately and then sweeps on the configured
// interval until Stop is called.
func (s *Sweeper) Start() {
	go func() {
		s.Sweep(time.Now())

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(time.Now())
			case <-s.stopChan:
				log.Println("Sweeper stopped")
				return
			}
		}
	}()
	log.Printf("Sweeper started, checking every %v for files unaccessed for %v", s.interval, TTL)
}

// Stop halts the periodic sweeping.
func (s *Sweeper) Stop() {
	close(s.stopChan)
}

// Sweep deletes every file whose last access is older than the TTL and
// returns the number of physical files it unlinked. An entry whose physical
// file is already gone still has its record and access-log entry cleaned up,
// but does not count toward the total. Overlapping sweeps are skipped: if a
// pass is still in flight, the call returns immediately.
//
// Deletion order per file is fixed: physical file, then file record, then
// access-log entry. A crash mid-way leaves the access-log entry behind, so
// the next sweep retries the same name.
func (s *Sweeper) Sweep(now time.Time) int {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("Sweep already in progress, skipping")
		return 0
	}
	defer s.running.Store(false)

	accessLog, err := s.store.AccessLog()
	if err != nil {
		log.Printf("Error reading access log: %v", err)
		return 0
	}

	nowMs := now.UnixMilli()
	ttlMs := TTL.Milliseconds()

	var expired []string
	for filename, lastAccess := range accessLog {
		if nowMs-lastAccess > ttlMs {
			expired = append(expired, filename)
		}
	}

	removed := 0
	for _, filename := range expired {
		filePath := filepath.Join(s.uploadPath, filename)
		switch err := os.Remove(filePath); {
		case err == nil:
			log.Printf("Removed expired file: %s (unaccessed for over %v)", filename, TTL)
			removed++
		case !os.IsNotExist(err):
			log.Printf("Error removing expired file %s: %v", filePath, err)
			continue
		}

		if _, err := s.store.DeleteFile(filename); err != nil {
			log.Printf("Error removing record for %s: %v", filename, err)
			continue
		}
		if err := s.store.DeleteAccess(filename); err != nil {
			log.Printf("Error removing access-log entry for %s: %v", filename, err)
			continue
		}
	}

	if removed > 0 {
		log.Printf("Sweep complete: removed %d of %d tracked files", removed, len(accessLog))
	}
	return removed
}
