// Package router registers the HTTP routes of the API on an echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tutorconnect-api/internal/handler"
	"github.com/iliyamo/tutorconnect-api/internal/middleware"
	"github.com/iliyamo/tutorconnect-api/internal/model"
)

// RegisterRoutes registers routes that need no authentication and no
// domain handler.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers the authentication routes.  Register, login,
// refresh and logout live under /v1/auth; /v1/me requires a valid access
// token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterBookings registers the booking endpoints.  Both students and
// tutors may book and manage sessions; creation is rate limited by limit.
// The guards are attached per route so unknown paths still answer 404.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	jwt := middleware.JWTAuth(jwtSecret)
	role := middleware.RequireRole(model.RoleStudent, model.RoleTutor)

	e.POST("/book/:tutorId", b.Create, jwt, role, limit)
	e.PATCH("/manage/:bookingId", b.Manage, jwt, role)
	e.GET("/bookings", b.List, jwt, role)
	e.GET("/bookings/categorized", b.Categorized, jwt, role)
}

// RegisterTutors registers the public tutor directory behind the response
// cache.
func RegisterTutors(e *echo.Echo, t *handler.TutorHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/tutors", cache)
	g.GET("", t.List)
	g.GET("/:tutorId", t.Get)
}
