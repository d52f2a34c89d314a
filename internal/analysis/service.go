package analysis

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/raine/ebay-specifics/internal/specifics"
	"github.com/rs/zerolog/log"
)

// Service is the analysis endpoint: it fetches the image behind an
// AnalysisRequest, runs label detection and attribute synthesis, and
// returns the resulting item specifics. It keeps no state between
// requests and is idempotent per request.
type Service struct {
	downloader  *Downloader
	labeler     Labeler
	synthesizer Synthesizer
}

// NewService creates an analysis service from its three stages.
func NewService(downloader *Downloader, labeler Labeler, synthesizer Synthesizer) *Service {
	return &Service{
		downloader:  downloader,
		labeler:     labeler,
		synthesizer: synthesizer,
	}
}

// Handler returns the service's HTTP handler. All responses carry CORS
// headers since the caller is a browser extension context.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/status", s.handleStatus)
	return withCORS(withRequestLog(mux))
}

func (s *Service) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Write([]byte("eBay Auto Specifics API is running!"))
}

func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req specifics.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "no JSON data received")
		return
	}
	if req.ImageURL == "" {
		writeError(w, http.StatusBadRequest, "no image URL provided")
		return
	}

	log.Info().Str("imageUrl", req.ImageURL).Msg("processing image")

	data, mimeType, err := s.downloader.Download(r.Context(), req.ImageURL)
	if err != nil {
		log.Error().Err(err).Str("imageUrl", req.ImageURL).Msg("image download failed")
		writeError(w, http.StatusBadRequest, "failed to download image")
		return
	}

	labels, err := s.labeler.DetectLabels(r.Context(), data, mimeType)
	if err != nil {
		log.Error().Err(err).Msg("label detection failed")
		writeError(w, http.StatusInternalServerError, "label detection failed")
		return
	}
	log.Info().Strs("labels", labels).Msg("labels detected")

	attrs, err := s.synthesizer.Synthesize(r.Context(), labels)
	if err != nil {
		log.Error().Err(err).Msg("attribute synthesis failed")
		writeError(w, http.StatusInternalServerError, "attribute synthesis failed")
		return
	}

	writeJSON(w, http.StatusOK, specifics.AnalysisResult{
		Success:       true,
		ItemSpecifics: attrs,
		Labels:        labels,
	})
}

func (s *Service) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"server": "running",
		"time":   time.Now().Format(time.RFC3339),
		"credentials": map[string]any{
			"gemini": s.labeler != nil && s.synthesizer != nil,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request handled")
	})
}
