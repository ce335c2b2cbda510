package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/faceoff/pkg/logger"
)

// DatasetDependencies defines the item source operations.
type DatasetDependencies interface {
	PutDataset(ctx context.Context, key string, ids []string) ([]string, error)
	Dataset(ctx context.Context, key string) ([]string, error)
	ImportDataset(ctx context.Context, key, userToken string) ([]string, error)
}

// DatasetHandler handles /datasets requests.
type DatasetHandler struct {
	deps DatasetDependencies
	log  logger.Logger
}

// NewDatasetHandler creates a new dataset handler.
func NewDatasetHandler(deps DatasetDependencies, log logger.Logger) *DatasetHandler {
	return &DatasetHandler{deps: deps, log: log}
}

type datasetRequest struct {
	ItemIDs []string `json:"item_ids"`
}

type datasetResponse struct {
	Dataset    string   `json:"dataset"`
	ItemIDs    []string `json:"item_ids"`
	TotalCount int      `json:"total_count"`
}

func newDatasetResponse(key string, ids []string) datasetResponse {
	return datasetResponse{Dataset: key, ItemIDs: ids, TotalCount: len(ids)}
}

// HandlePut handles PUT /datasets/{key}.
func (h *DatasetHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_dataset"
	var req datasetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	key := datasetKey(r)
	ids, err := h.deps.PutDataset(r.Context(), key, req.ItemIDs)
	if err != nil {
		writeFailure(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newDatasetResponse(key, ids))
}

// HandleGet handles GET /datasets/{key}.
func (h *DatasetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_dataset"
	key := datasetKey(r)
	ids, err := h.deps.Dataset(r.Context(), key)
	if err != nil {
		writeFailure(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newDatasetResponse(key, ids))
}

// HandleImport handles POST /datasets/{key}/import. The caller's bearer
// token is forwarded to the catalog and never stored.
func (h *DatasetHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.import_dataset"
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	key := datasetKey(r)
	ids, err := h.deps.ImportDataset(r.Context(), key, token)
	if err != nil {
		writeFailure(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newDatasetResponse(key, ids))
}

// datasetKey is the path key as the service stores it.
func datasetKey(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("key"))
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
