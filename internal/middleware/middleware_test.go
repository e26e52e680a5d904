package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tutorconnect-api/internal/config"
	"github.com/iliyamo/tutorconnect-api/internal/utils"
)

func newContext(e *echo.Echo, method, target, bearer string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()
	e := echo.New()
	tok, err := utils.NewAccessToken("secret", "student-1", "student", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	var seenUser, seenRole string
	h := JWTAuth("secret")(func(c echo.Context) error {
		seenUser, seenRole = UserID(c), Role(c)
		return c.NoContent(http.StatusNoContent)
	})

	c, rec := newContext(e, http.MethodGet, "/bookings", tok.Token)
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusNoContent || seenUser != "student-1" || seenRole != "student" {
		t.Fatalf("unexpected result: code=%d user=%q role=%q", rec.Code, seenUser, seenRole)
	}

	for name, bearer := range map[string]string{"missing": "", "forged": tok.Token + "x"} {
		c, rec := newContext(e, http.MethodGet, "/bookings", bearer)
		if err := h(c); err != nil {
			t.Fatalf("%s: handler: %v", name, err)
		}
		if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), `"success":false`) {
			t.Fatalf("%s: expected 401 envelope, got %d %s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()
	e := echo.New()
	h := RequireRole("student", "tutor")(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	cases := map[string]int{"student": http.StatusOK, "tutor": http.StatusOK, "admin": http.StatusForbidden, "": http.StatusForbidden}
	for role, want := range cases {
		c, rec := newContext(e, http.MethodGet, "/", "")
		if role != "" {
			c.Set(ContextRole, role)
		}
		if err := h(c); err != nil {
			t.Fatalf("%q: handler: %v", role, err)
		}
		if rec.Code != want {
			t.Fatalf("%q: expected %d, got %d", role, want, rec.Code)
		}
	}
}

func TestBuildRateKey(t *testing.T) {
	t.Parallel()
	e := echo.New()
	c, _ := newContext(e, http.MethodPost, "/api/bookings/book/tutor-1", "")
	c.SetPath("/api/bookings/book/:tutorId")

	anon := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}, c)
	if anon != "rl:user:anon:route:POST /api/bookings/book/:tutorId" {
		t.Fatalf("unexpected key %q", anon)
	}
	c.Set(ContextUserID, "student-1")
	if got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c); got != "rl:user:student-1" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	t.Parallel()
	e := echo.New()
	next := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	for name, mw := range map[string]echo.MiddlewareFunc{
		"rate limit": NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
		"cache":      NewRedisCache(config.CacheConfig{Enabled: true}, nil, nil),
	} {
		c, rec := newContext(e, http.MethodGet, "/api/tutors", "")
		if err := mw(next)(c); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
			t.Fatalf("%s: expected pass-through, got %d %q", name, rec.Code, rec.Body.String())
		}
	}
}

func TestCachePayload_RoundTrip(t *testing.T) {
	t.Parallel()
	hdr := http.Header{}
	hdr.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"success":true}`))
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || got.Get(echo.HeaderContentType) != echo.MIMEApplicationJSON || string(body) != `{"success":true}` {
		t.Fatalf("round trip mismatch: ok=%v status=%d hdr=%v body=%q", ok, status, got, body)
	}
	if _, _, _, ok := decodePayload(bs[:5]); ok {
		t.Fatal("short payload must not decode")
	}
}

func TestCaptureWriter_Truncation(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	if cw.truncated() {
		t.Fatal("3 bytes fit within the limit")
	}
	_, _ = cw.Write([]byte("de"))
	if !cw.truncated() || cw.buf.String() != "abcd" || rec.Body.String() != "abcde" {
		t.Fatalf("unexpected capture: truncated=%v buf=%q client=%q", cw.truncated(), cw.buf.String(), rec.Body.String())
	}
}
