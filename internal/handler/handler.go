package handler

import (
	"github.com/vjuliano/audiodrop/internal/admin"
	"github.com/vjuliano/audiodrop/internal/config"
	"github.com/vjuliano/audiodrop/internal/ingest"
	"github.com/vjuliano/audiodrop/internal/store"
)

// Handler handles HTTP requests
type Handler struct {
	cfg      *config.Config
	store    *store.Store
	ingestor *ingest.Ingestor
	admin    *admin.Manager
	sessions *admin.Sessions
}

// NewHandler creates a new handler
func NewHandler(cfg *config.Config, st *store.Store, ing *ingest.Ingestor, mgr *admin.Manager, sessions *admin.Sessions) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    st,
		ingestor: ing,
		admin:    mgr,
		sessions: sessions,
	}
}
