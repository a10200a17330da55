package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cellarium/catalog-cli/internal/frontier"
	"github.com/cellarium/catalog-cli/internal/health"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/internal/store"
	"github.com/cellarium/catalog-cli/pkg/serpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fr, err := newFrontier(ctx)
		if err != nil {
			return err
		}

		costs := newCostRecorder(st)
		checker := health.NewChecker(st, health.NewAlerter(cfg.Monitoring.WebhookURL), cfg.Monitoring)

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: buildServer(st, fr, newSearch(costs), checker, serverLimits{
				ExtractionPerHour:   cfg.Server.ExtractionPerHour,
				CrawlTriggerPerHour: cfg.Server.CrawlTriggerPerHour,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := newShutdownContext()
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("api listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func newShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

// serverLimits carries the per-client hourly budgets for the expensive
// endpoints.
type serverLimits struct {
	ExtractionPerHour   int
	CrawlTriggerPerHour int
}

// clientLimiter hands out one token-bucket limiter per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newClientLimiter(perHour int) *clientLimiter {
	if perHour <= 0 {
		perHour = 10
	}
	return &clientLimiter{
		clients: map[string]*rate.Limiter{},
		limit:   rate.Limit(float64(perHour) / 3600.0),
		burst:   perHour,
	}
}

func (cl *clientLimiter) allow(clientIP string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	lim, ok := cl.clients[clientIP]
	if !ok {
		lim = rate.NewLimiter(cl.limit, cl.burst)
		cl.clients[clientIP] = lim
	}
	return lim.Allow()
}

func (cl *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !cl.allow(ip) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// serveSearcher is the search subset the query-driven extraction
// endpoint uses.
type serveSearcher interface {
	Search(ctx context.Context, query string, num int) ([]serpapi.Result, error)
}

// buildServer wires the API routes. The store and searcher are interfaces
// here so handler tests run against fakes.
func buildServer(st store.Store, fr *frontier.Frontier, searcher serveSearcher, checker *health.Checker, limits serverLimits) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	extractLimiter := newClientLimiter(limits.ExtractionPerHour)
	crawlLimiter := newClientLimiter(limits.CrawlTriggerPerHour)

	r.Get("/healthz", handleHealthz(st, fr))

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", handleListProducts(st))
		r.Get("/products/{id}", handleGetProduct(st))
		r.Get("/jobs", handleListJobs(st))
		r.Get("/jobs/{id}", handleGetJob(st))
		r.Get("/sources", handleListSources(st))
		r.Get("/sources/health", handleSourceHealth(checker))
		r.Get("/errors", handleListErrors(st))
		r.Post("/errors/{id}/resolve", handleResolveError(st))
		r.Get("/costs", handleCosts(st))

		r.With(extractLimiter.middleware).Post("/extract", handleEnqueueExtract(fr))
		r.With(extractLimiter.middleware).Post("/extract/search", handleSearchExtract(fr, searcher))
		r.With(crawlLimiter.middleware).Post("/crawl", handleTriggerCrawl(st))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func handleHealthz(st store.Store, fr *frontier.Frontier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{"status": "ok"}
		status := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			out["status"] = "degraded"
			out["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			out["database"] = "ok"
		}
		if fr != nil {
			out["frontier_depth"] = fr.Len()
		}
		if counts, err := st.CountProductsByStatus(r.Context()); err == nil {
			out["products"] = counts
		}
		writeJSON(w, status, out)
	}
}

func handleListProducts(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.ProductFilter{
			Type:   model.ProductType(q.Get("type")),
			Status: model.ProductStatus(q.Get("status")),
		}
		if v := q.Get("min_score"); v != "" {
			filter.MinScore, _ = strconv.Atoi(v)
		}
		if v := q.Get("limit"); v != "" {
			filter.Limit, _ = strconv.Atoi(v)
		}
		if v := q.Get("offset"); v != "" {
			filter.Offset, _ = strconv.Atoi(v)
		}

		products, err := st.ListProducts(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products, "count": len(products)})
	}
}

func handleGetProduct(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p, err := st.GetProduct(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if p == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}

		awards, _ := st.ListAwards(r.Context(), id)
		provenance, _ := st.ListProvenance(r.Context(), id)
		writeJSON(w, http.StatusOK, map[string]any{
			"product":    p,
			"awards":     awards,
			"provenance": provenance,
		})
	}
}

func handleListJobs(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		jobs, err := st.ListJobs(r.Context(), r.URL.Query().Get("source"), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
	}
}

func handleGetJob(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := st.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if job == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id": job.ID,
			"status": job.Status,
			"job":    job,
		})
	}
}

func handleListSources(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := st.ListSources(r.Context(), r.URL.Query().Get("all") != "true")
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if cat := r.URL.Query().Get("category"); cat != "" {
			filtered := sources[:0]
			for _, s := range sources {
				if s.Category == model.SourceCategory(cat) {
					filtered = append(filtered, s)
				}
			}
			sources = filtered
		}
		writeJSON(w, http.StatusOK, map[string]any{"sources": sources, "count": len(sources)})
	}
}

func handleSourceHealth(checker *health.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lookback := 24
		if v := r.URL.Query().Get("lookback_hours"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				lookback = n
			}
		}
		snap, err := checker.Collect(r.Context(), lookback)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"snapshot": snap,
			"alerts":   checker.Evaluate(snap),
		})
	}
}

func handleListErrors(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.ErrorFilter{
			SourceID:   q.Get("source"),
			Kind:       model.ErrorKind(q.Get("kind")),
			Unresolved: q.Get("unresolved") == "true",
		}
		if v := q.Get("limit"); v != "" {
			filter.Limit, _ = strconv.Atoi(v)
		}
		errs, err := st.ListCrawlErrors(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"errors": errs})
	}
}

func handleResolveError(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := st.ResolveCrawlError(r.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
	}
}

func handleCosts(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		out := map[string]any{}
		for label, d := range map[string]time.Duration{
			"day":   24 * time.Hour,
			"week":  7 * 24 * time.Hour,
			"month": 30 * 24 * time.Hour,
		} {
			cents, err := st.SumCostSince(r.Context(), now.Add(-d))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			out[label+"_cents"] = cents
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// extractRequest is the POST /api/extract payload.
type extractRequest struct {
	URLs     []string `json:"urls"`
	Priority int      `json:"priority,omitempty"`
}

func handleEnqueueExtract(fr *frontier.Frontier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if len(req.URLs) == 0 || len(req.URLs) > extractBatchMax {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("between 1 and %d urls required", extractBatchMax),
			})
			return
		}
		priority := req.Priority
		if priority <= 0 {
			priority = model.PriorityDefault
		}

		enqueued := 0
		for _, u := range req.URLs {
			fresh, err := fr.Enqueue(r.Context(), u, priority, model.QueueMeta{SearchType: "api"})
			if err != nil {
				zap.L().Warn("api enqueue failed", zap.String("url", u), zap.Error(err))
				continue
			}
			if fresh {
				enqueued++
			}
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"enqueued":  enqueued,
			"duplicate": len(req.URLs) - enqueued,
		})
	}
}

// searchExtractRequest is the POST /api/extract/search payload.
type searchExtractRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

const searchExtractMax = 10

func handleSearchExtract(fr *frontier.Frontier, searcher serveSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchExtractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query required"})
			return
		}
		limit := req.Limit
		if limit <= 0 || limit > searchExtractMax {
			limit = searchExtractMax
		}

		results, err := searcher.Search(r.Context(), req.Query, limit)
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}

		enqueued := 0
		for _, res := range results {
			fresh, err := fr.Enqueue(r.Context(), res.Link, model.PriorityDefault,
				model.QueueMeta{SearchType: "api_search"})
			if err != nil {
				zap.L().Warn("search enqueue failed", zap.String("url", res.Link), zap.Error(err))
				continue
			}
			if fresh {
				enqueued++
			}
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"query":    req.Query,
			"found":    len(results),
			"enqueued": enqueued,
		})
	}
}

// crawlRequest is the POST /api/crawl payload.
type crawlRequest struct {
	Source string `json:"source"`
}

func handleTriggerCrawl(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req crawlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		src, err := st.GetSourceBySlug(r.Context(), req.Source)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if src == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "source not found"})
			return
		}
		if err := st.MarkSourceDue(r.Context(), src.ID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "scheduled",
			"source": src.Slug,
		})
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
