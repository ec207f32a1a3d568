package api

import (
	"encoding/csv"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"offmall_watcher/config"
	"offmall_watcher/models"
	"offmall_watcher/services"
	"offmall_watcher/storage"
)

const (
	defaultFastSellerDays  = 7
	maxFastSellerDays      = 90
	defaultFastSellerLimit = 100
	maxFastSellerLimit     = 500
)

// Server exposes the watcher's state and controls over HTTP.
type Server struct {
	cfg   *config.Config
	store storage.Store
	scan  *services.ScanService
	check *services.CheckService
}

func NewServer(cfg *config.Config, store storage.Store, scan *services.ScanService, check *services.CheckService) *Server {
	return &Server{cfg: cfg, store: store, scan: scan, check: check}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/keywords", s.handleListKeywords)
	mux.HandleFunc("POST /api/keywords", s.handleCreateKeyword)
	mux.HandleFunc("PUT /api/keywords/{id}", s.handleUpdateKeyword)
	mux.HandleFunc("DELETE /api/keywords/{id}", s.handleDeleteKeyword)
	mux.HandleFunc("POST /api/keywords/select-all", s.handleSelectAll)
	mux.HandleFunc("GET /api/keywords/export", s.handleExportKeywords)
	mux.HandleFunc("POST /api/incoming-products", s.handleIncomingProducts)
	mux.HandleFunc("GET /api/fast-sellers", s.handleFastSellers)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("POST /api/check", s.handleCheck)

	return mux
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	kws, err := s.store.Keywords(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if kws == nil {
		kws = []models.Keyword{}
	}
	writeJSON(w, http.StatusOK, kws)
}

func (s *Server) handleCreateKeyword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keyword  string `json:"keyword"`
		Exclude  string `json:"exclude"`
		Selected *bool  `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	kw := &models.Keyword{
		Text:              req.Keyword,
		Exclude:           req.Exclude,
		Selected:          true,
		SourceListingName: models.ManualSourceName,
		CreatedAt:         time.Now(),
	}
	if req.Selected != nil {
		kw.Selected = *req.Selected
	}

	if err := s.store.CreateKeyword(r.Context(), kw); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, kw)
}

func (s *Server) handleUpdateKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid keyword id")
		return
	}

	var patch models.KeywordPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	found, err := s.store.UpdateKeyword(r.Context(), id, &patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "keyword not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid keyword id")
		return
	}

	found, err := s.store.DeleteKeyword(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "keyword not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	selected := true
	if v := r.URL.Query().Get("selected"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid selected value")
			return
		}
		selected = b
	}

	if err := s.store.SetAllKeywordsSelected(r.Context(), selected); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"selected": selected})
}

func (s *Server) handleExportKeywords(w http.ResponseWriter, r *http.Request) {
	kws, err := s.store.SelectedKeywords(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="keywords.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"keyword", "exclude"})
	for _, kw := range kws {
		cw.Write([]string{kw.Text, kw.Exclude})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Printf("API: CSV export write error: %v", err)
	}
}

func (s *Server) handleIncomingProducts(w http.ResponseWriter, r *http.Request) {
	var stubs []models.ListingStub
	if err := json.NewDecoder(r.Body).Decode(&stubs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	tx, err := s.store.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer tx.Rollback(ctx)

	newCount := 0
	for _, stub := range stubs {
		if stub.ExternalID == "" {
			continue
		}
		exists, err := tx.ListingExists(ctx, stub.ExternalID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if exists {
			continue
		}
		listing := &models.Listing{
			ExternalID: stub.ExternalID,
			Name:       stub.Name,
			Price:      stub.Price,
			URL:        stub.URL,
			ImageURL:   stub.ImageURL,
			Category:   models.DefaultCategory,
			Status:     models.StatusActive,
			CreatedAt:  time.Now(),
		}
		if err := tx.InsertListing(ctx, listing); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		newCount++
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"received": len(stubs), "new": newCount})
}

func (s *Server) handleFastSellers(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", defaultFastSellerDays, 1, maxFastSellerDays)
	limit := queryInt(r, "limit", defaultFastSellerLimit, 1, maxFastSellerLimit)

	since := time.Now().AddDate(0, 0, -days)
	listings, err := s.store.FastSellers(r.Context(), since, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type fastSeller struct {
		models.Listing
		CategoryName string `json:"category_name"`
	}
	out := make([]fastSeller, 0, len(listings))
	for _, l := range listings {
		out = append(out, fastSeller{Listing: l, CategoryName: s.categoryName(l.Category)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	type category struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	out := make([]category, 0, len(s.cfg.Categories))
	for _, c := range s.cfg.Categories {
		out = append(out, category{Key: c.Key, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	result, err := s.scan.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	result, err := s.check.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) categoryName(key string) string {
	for _, c := range s.cfg.Categories {
		if c.Key == key {
			return c.Name
		}
	}
	return "不明"
}

func queryInt(r *http.Request, name string, def, min, max int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: response encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
