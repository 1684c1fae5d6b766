// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/events-api/internal/core"
)

// Counter reports the size of one collection.
type Counter struct {
	Name  string
	Count func(ctx context.Context) (int64, error)
}

type Handler struct {
	counters   []Counter
	redisStats func() *redis.PoolStats
	redisPing  func(ctx context.Context) error
	dbPing     func(ctx context.Context) error
}

type HandlerConfig struct {
	Counters   []Counter
	RedisStats func() *redis.PoolStats
	RedisPing  func(ctx context.Context) error
	DBPing     func(ctx context.Context) error
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		counters:   cfg.Counters,
		redisStats: cfg.RedisStats,
		redisPing:  cfg.RedisPing,
		dbPing:     cfg.DBPing,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	rs *core.Responder,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", rs.Wrap(h.GetSystemStats))
		r.Get("/stats/db", rs.Wrap(h.GetDatabaseStats))
		r.Get("/stats/redis", rs.Wrap(h.GetRedisStats))
		r.Get("/stats/runtime", rs.Wrap(h.GetRuntimeStats))
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	counts, err := h.collectionCounts(ctx)
	if err != nil {
		return err
	}

	core.OK(w, SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy:     pingOK(ctx, h.dbPing),
			Collections: counts,
		},
		Redis:   h.redisStatus(ctx),
		Runtime: readRuntimeStats(),
	})
	return nil
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, r *http.Request) error {
	counts, err := h.collectionCounts(r.Context())
	if err != nil {
		return err
	}

	core.OK(w, DatabaseStatus{
		Healthy:     pingOK(r.Context(), h.dbPing),
		Collections: counts,
	})
	return nil
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) error {
	core.OK(w, h.redisStatus(r.Context()))
	return nil
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) error {
	core.OK(w, readRuntimeStats())
	return nil
}

func (h *Handler) collectionCounts(ctx context.Context) (map[string]int64, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	counts := make(map[string]int64, len(h.counters))

	for _, c := range h.counters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := c.Count(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("count %s: %w", c.Name, err)
				}
				return
			}
			counts[c.Name] = n
		}()
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return counts, nil
}

func (h *Handler) redisStatus(ctx context.Context) RedisStatus {
	if h.redisPing == nil {
		return RedisStatus{Enabled: false}
	}

	status := RedisStatus{
		Enabled: true,
		Healthy: pingOK(ctx, h.redisPing),
	}

	if h.redisStats != nil {
		stats := h.redisStats()
		status.Stats = &RedisPoolStats{
			Hits:       stats.Hits,
			Misses:     stats.Misses,
			Timeouts:   stats.Timeouts,
			TotalConns: stats.TotalConns,
			IdleConns:  stats.IdleConns,
			StaleConns: stats.StaleConns,
		}
	}

	return status
}

func pingOK(ctx context.Context, ping func(context.Context) error) bool {
	if ping == nil {
		return false
	}
	return ping(ctx) == nil
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy     bool             `json:"healthy"`
	Collections map[string]int64 `json:"collections"`
}

type RedisStatus struct {
	Enabled bool            `json:"enabled"`
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
