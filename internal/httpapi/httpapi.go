// Package httpapi is the external HTTP façade: the five /api endpoints
// described in the engine's design. It is a thin caller of the core
// components — indexing, ranking/search and statistics — and carries no
// business logic of its own.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mkrylov/searchengine/internal/indexing"
	"github.com/mkrylov/searchengine/internal/lemma"
	"github.com/mkrylov/searchengine/internal/ranking"
	"github.com/mkrylov/searchengine/internal/search"
	"github.com/mkrylov/searchengine/internal/stats"
)

// Server wires the core services to chi handlers.
type Server struct {
	indexing *indexing.Service
	ranking  *ranking.Service
	builder  *search.Builder
	analyzer *lemma.Analyzer
	stats    *stats.Service
	log      *slog.Logger
}

// New returns a Server ready to be mounted with Routes.
func New(idx *indexing.Service, rk *ranking.Service, builder *search.Builder, an *lemma.Analyzer, st *stats.Service, log *slog.Logger) *Server {
	return &Server{indexing: idx, ranking: rk, builder: builder, analyzer: an, stats: st, log: log}
}

// Routes mounts the five /api endpoints onto r.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/startIndexing", s.startIndexing)
		r.Get("/stopIndexing", s.stopIndexing)
		r.Get("/statistics", s.statistics)
		r.Post("/indexPage", s.indexPage)
		r.Get("/search", s.search)
	})
}

type apiResponse struct {
	Result bool   `json:"result"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Result: false, Error: message})
}

func (s *Server) startIndexing(w http.ResponseWriter, r *http.Request) {
	if err := s.indexing.StartIndexing(r.Context()); err != nil {
		if errors.Is(err, indexing.ErrAlreadyRunning) {
			writeError(w, http.StatusBadRequest, "Индексация уже запущена")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Result: true})
}

func (s *Server) stopIndexing(w http.ResponseWriter, r *http.Request) {
	if err := s.indexing.StopIndexing(); err != nil {
		if errors.Is(err, indexing.ErrNotRunning) {
			writeError(w, http.StatusBadRequest, "Индексация не запущена")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Result: true})
}

type statisticsResponse struct {
	Result     bool             `json:"result"`
	Statistics stats.Statistics `json:"statistics"`
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.GetStatistics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{Result: true, Statistics: st})
}

func (s *Server) indexPage(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.FormValue("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := s.indexing.IndexPage(r.Context(), url); err != nil {
		if errors.Is(err, indexing.ErrOutsideConfiguredSites) {
			writeError(w, http.StatusBadRequest, "Данная страница находится за пределами сайтов, указанных в конфигурации")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Result: true})
}

type searchResponse struct {
	Result bool            `json:"result"`
	Count  int             `json:"count"`
	Data   []search.Result `json:"data"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Задан пустой поисковый запрос")
		return
	}
	siteURL := r.URL.Query().Get("site")
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)

	queryLemmas := s.analyzer.LemmasForQuery(query)
	if len(queryLemmas) == 0 {
		writeError(w, http.StatusBadRequest, "Задан пустой поисковый запрос")
		return
	}

	ranked, err := s.ranking.Search(queryLemmas, siteURL)
	if err != nil {
		s.log.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	results := s.builder.Build(ranked, queryLemmas, offset, limit)
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "По запросу ничего не найдено")
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Result: true, Count: len(results), Data: results})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
