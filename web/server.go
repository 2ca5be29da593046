package web

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"main/entity"
	"main/query"
	"main/rules"
	"main/stats"
	"main/tracker"
)

// CurrentSource exposes the sampler's open record without coupling the
// server to the sampler itself.
type CurrentSource interface {
	Current() (entity.ActivityRecord, bool)
}

// Server is the localhost JSON API: statistics for the UI, rule management
// (which invalidates the rule cache), and the tab-change ingest endpoint
// for browser extensions.
type Server struct {
	db      *query.Database
	cache   *rules.Cache
	stats   *stats.Service
	tabs    *tracker.TabFeed
	current CurrentSource
}

func NewServer(db *query.Database, cache *rules.Cache, statsSvc *stats.Service, tabs *tracker.TabFeed, current CurrentSource) *Server {
	return &Server{db: db, cache: cache, stats: statsSvc, tabs: tabs, current: current}
}

// Start serves the API on addr (bind to localhost to avoid firewall
// prompts) and returns the http.Server for shutdown.
func (s *Server) Start(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/records", s.handleRecords)
	mux.HandleFunc("/api/current", s.handleCurrent)
	mux.HandleFunc("/api/rules", s.handleRules)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/tab", s.handleTab)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("web: API on http://%v", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Println("web: server error:", err)
		}
	}()
	return srv
}

// parseRange reads either from/to (RFC3339) or a period alias.
func parseRange(r *http.Request) (time.Time, time.Time, bool) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr != "" && toStr != "" {
		from, err1 := time.Parse(time.RFC3339, fromStr)
		to, err2 := time.Parse(time.RFC3339, toStr)
		if err1 != nil || err2 != nil || !to.After(from) {
			return time.Time{}, time.Time{}, false
		}
		return from, to, true
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "day"
	}
	from, to := stats.PeriodRange(period, time.Now())
	return from, to, true
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(r)
	if !ok {
		http.Error(w, "bad time range", http.StatusBadRequest)
		return
	}
	result, err := s.stats.Between(from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(r)
	if !ok {
		http.Error(w, "bad time range", http.StatusBadRequest)
		return
	}
	records, err := s.db.GetRecordsBetween(from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.current.Current()
	if !ok {
		writeJSON(w, map[string]any{"tracking": false})
		return
	}
	writeJSON(w, map[string]any{"tracking": true, "record": rec})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		ruleList, err := s.db.ListRules()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, ruleList)
		return
	}
	if r.Method == http.MethodDelete {
		s.deleteRule(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var rule entity.CategoryRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	rule.AppPattern = strings.TrimSpace(rule.AppPattern)
	rule.URLPattern = strings.TrimSpace(rule.URLPattern)
	rule.TitlePattern = strings.TrimSpace(rule.TitlePattern)
	if rule.AppPattern == "" && rule.URLPattern == "" && rule.TitlePattern == "" {
		http.Error(w, "rule needs at least one pattern", http.StatusBadRequest)
		return
	}
	if _, err := s.db.GetCategoryByID(rule.CategoryID); err != nil {
		http.Error(w, "unknown category", http.StatusBadRequest)
		return
	}
	if err := s.db.InsertRule(&rule); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.cache.Invalidate()
	writeJSON(w, rule)
}

// deleteRule handles DELETE /api/rules, taking the rule id from the query
// string or a JSON body.
func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID int64 `json:"id"`
	}
	if raw := r.URL.Query().Get("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body.ID = id
	} else if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := s.db.DeleteRule(body.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.cache.Invalidate()
	writeJSON(w, map[string]any{"deleted": body.ID})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		categories, err := s.db.ListCategories()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, categories)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	kind := entity.Category(body.Kind)
	if body.Name == "" || kind.IsCustom() {
		http.Error(w, "need a name and a built-in kind", http.StatusBadRequest)
		return
	}
	id, err := s.db.InsertCategory(body.Name, kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.cache.Invalidate()
	writeJSON(w, entity.CategoryInfo{ID: id, Name: body.Name, Kind: kind})
}

// handleTab ingests browser tab changes pushed by an extension.
func (s *Server) handleTab(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var ev tracker.TabEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.tabs.Publish(ev)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("web: encode response:", err)
	}
}
