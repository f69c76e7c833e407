package handler

import (
	"net/http"
)

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// System endpoints
	mux.HandleFunc("GET /health", h.HandleHealthCheck)

	// API endpoints
	mux.HandleFunc("GET /api/init", h.HandleInit)
	mux.HandleFunc("GET /api/destroy", h.HandleDestroy)
	mux.HandleFunc("GET /api/get_root", h.HandleGetRoot)
	mux.HandleFunc("GET /api/lookup", h.HandleLookup)
	mux.HandleFunc("GET /api/getattr", h.HandleGetAttr)
	mux.HandleFunc("GET /api/iterate_dir", h.HandleIterateDir)
	mux.HandleFunc("GET /api/create_file", h.HandleCreateFile)
	mux.HandleFunc("GET /api/open", h.HandleOpen)
	mux.HandleFunc("GET /api/release", h.HandleRelease)
	mux.HandleFunc("GET /api/read", h.HandleRead)
	mux.HandleFunc("GET /api/write", h.HandleWrite)
	mux.HandleFunc("GET /api/truncate", h.HandleTruncate)
	mux.HandleFunc("GET /api/chmod", h.HandleChmod)
	mux.HandleFunc("GET /api/unlink", h.HandleUnlink)
	mux.HandleFunc("GET /api/mkdir", h.HandleMkdir)
	mux.HandleFunc("GET /api/rmdir", h.HandleRmdir)
	mux.HandleFunc("GET /api/rename", h.HandleRename)
	mux.HandleFunc("GET /api/statfs", h.HandleStatFS)
}
