package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness and dependency reachability for load
// balancers.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Health returns 200 "ok" when the database answers a ping and 503
// otherwise.  Redis is optional and reported only.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := echo.Map{"database": "ok"}
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks["database"] = "unreachable"
		}
	}
	switch {
	case h.Redis == nil:
		checks["redis"] = "disabled"
	case h.Redis.Ping(ctx).Err() != nil:
		checks["redis"] = "unreachable"
	default:
		checks["redis"] = "ok"
	}
	return c.JSON(status, echo.Map{"success": status == http.StatusOK, "data": checks})
}
