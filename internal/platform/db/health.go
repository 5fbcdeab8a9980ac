package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// poolSnapshot is the connection pool state reported by the db health check.
type poolSnapshot struct {
	ConnsTotal    int32  `json:"conns_total"`
	ConnsIdle     int32  `json:"conns_idle"`
	ConnsAcquired int32  `json:"conns_acquired"`
	ConnsMax      int32  `json:"conns_max"`
	Acquires      int64  `json:"acquires"`
	AcquireWait   string `json:"acquire_wait"`
}

func snapshotPool(pool *pgxpool.Pool) poolSnapshot {
	st := pool.Stat()
	return poolSnapshot{
		ConnsTotal:    st.TotalConns(),
		ConnsIdle:     st.IdleConns(),
		ConnsAcquired: st.AcquiredConns(),
		ConnsMax:      st.MaxConns(),
		Acquires:      st.AcquireCount(),
		AcquireWait:   st.AcquireDuration().String(),
	}
}

// HealthHandler reports database reachability plus pool statistics.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"database": "unreachable",
				"error":    err.Error(),
				"pool":     snapshotPool(pool),
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"database": "ok",
			"pool":     snapshotPool(pool),
		})
	}
}
