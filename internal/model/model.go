package model

import "time"

// FileRecord describes one hosted upload. ID and Filename are the same
// server-generated storage name; OriginalName is whatever the uploader called
// the file and is only used for display.
type FileRecord struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	UploadTime   time.Time `json:"uploadTime"`
	URL          string    `json:"url"`
}

// Announcement is the site-wide notice shown on the upload page.
type Announcement struct {
	Content string `json:"content"`
	Enabled bool   `json:"enabled"`
}

// RateLimitPolicy controls per-IP upload throttling. MaxUploads is the hard
// ceiling of uploads per trailing hour and is only enforced while Enabled.
type RateLimitPolicy struct {
	Enabled    bool `json:"enabled"`
	MaxUploads int  `json:"maxUploads"`
}
