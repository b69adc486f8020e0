package handler

import (
	"chatrelay/backend/internal/chathub"
	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/storage"
	"log/slog"
)

// Handler holds what the HTTP routes need: the relay engine for live
// connections and the store for history reads.
type Handler struct {
	Engine *chathub.Engine
	Store  storage.Storage

	cfg config.Config
	log *slog.Logger
}

func NewHandler(engine *chathub.Engine, store storage.Storage, cfg config.Config, log *slog.Logger) *Handler {
	return &Handler{Engine: engine, Store: store, cfg: cfg, log: log}
}
