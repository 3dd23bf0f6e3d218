package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"feedwatch/relay/internal/models"
	"feedwatch/relay/internal/state"
	"feedwatch/relay/internal/timestamp"
)

// WatermarksResponse is the body of GET /v1/watermarks.
type WatermarksResponse struct {
	Watermarks []models.WatermarkRow `json:"watermarks"`
}

// WatermarksHandler serves the persisted watermarks read-only.
// It retrieves its logger from the request context.
type WatermarksHandler struct {
	store state.Store
}

// NewWatermarksHandler creates a new handler instance.
func NewWatermarksHandler(store state.Store) *WatermarksHandler {
	return &WatermarksHandler{store: store}
}

// GetWatermarks lists every watermark sorted by feed URL, or only the one
// named by the 'feed' query parameter.
func (h *WatermarksHandler) GetWatermarks(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	log.Debug().Msg("Processing watermarks request")

	st := h.store.Load(r.Context())

	feedURLs := st.FeedURLs()
	if feed := r.URL.Query().Get("feed"); feed != "" {
		if _, ok := st.Get(feed); !ok {
			log.Debug().Str("feed", feed).Msg("No watermark for feed")
			http.Error(w, "No watermark for feed", http.StatusNotFound)
			return
		}
		feedURLs = []string{feed}
	}

	response := WatermarksResponse{Watermarks: make([]models.WatermarkRow, 0, len(feedURLs))}
	for _, feedURL := range feedURLs {
		t, _ := st.Get(feedURL)
		response.Watermarks = append(response.Watermarks, models.WatermarkRow{
			FeedURL:     feedURL,
			Watermark:   timestamp.FormatState(t),
			WatermarkNS: t.UnixNano(),
		})
	}

	jsonBytes, err := json.Marshal(response)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
	}
	log.Debug().Int("watermarks", len(response.Watermarks)).Msg("Response completed")
}
