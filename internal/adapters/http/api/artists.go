package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/faceoff/internal/adapters/catalog"
	"github.com/okian/faceoff/pkg/logger"
)

// ArtistDependencies defines the catalog metadata lookup.
type ArtistDependencies interface {
	Artists(ctx context.Context, ids []string) ([]catalog.Artist, error)
}

// ArtistHandler handles GET /artists.
type ArtistHandler struct {
	deps ArtistDependencies
	log  logger.Logger
}

// NewArtistHandler creates a new artist handler.
func NewArtistHandler(deps ArtistDependencies, log logger.Logger) *ArtistHandler {
	return &ArtistHandler{deps: deps, log: log}
}

type artistsResponse struct {
	Artists []catalog.Artist `json:"artists"`
}

// HandleGet handles GET /artists?ids=a,b,c.
func (h *ArtistHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_artists"
	ids := []string{}
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, catalog.ErrNoIDs))
		return
	}
	artists, err := h.deps.Artists(r.Context(), ids)
	if err != nil {
		writeFailure(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, artistsResponse{Artists: artists})
}
