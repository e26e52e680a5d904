package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tutorconnect-api/internal/handler"
	"github.com/iliyamo/tutorconnect-api/internal/utils"
)

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func TestRegisterBookings_Routes(t *testing.T) {
	t.Parallel()
	e := echo.New()
	// Handlers are never invoked here; only the route table is inspected.
	RegisterBookings(e, &handler.BookingHandler{Logger: zap.NewNop()}, "secret", passThrough)

	want := map[string]bool{
		http.MethodPost + " /book/:tutorId":      false,
		http.MethodPatch + " /manage/:bookingId":  false,
		http.MethodGet + " /bookings":             false,
		http.MethodGet + " /bookings/categorized": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, seen := range want {
		if !seen {
			t.Fatalf("route %s not registered", route)
		}
	}
}

func TestRegisterBookings_Guards(t *testing.T) {
	t.Parallel()
	e := echo.New()
	RegisterBookings(e, &handler.BookingHandler{Logger: zap.NewNop()}, "secret", passThrough)

	admin, err := utils.NewAccessToken("secret", "admin-1", "admin", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	cases := map[string]struct {
		bearer string
		want   int
	}{
		"anonymous":  {"", http.StatusUnauthorized},
		"wrong role": {admin.Token, http.StatusForbidden},
	}
	for name, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
		if tc.bearer != "" {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+tc.bearer)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", name, tc.want, rec.Code)
		}
	}
}

func TestRegisterBookings_UnknownPathIsNotFound(t *testing.T) {
	t.Parallel()
	e := echo.New()
	RegisterBookings(e, &handler.BookingHandler{Logger: zap.NewNop()}, "secret", passThrough)

	for _, path := range []string{"/no-such-path", "/book", "/manage/bk-1/extra"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d %s", path, rec.Code, rec.Body.String())
		}
	}
}
