package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remoteAddr string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.RemoteAddr = remoteAddr
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, body []byte) (code int, message string) {
	t.Helper()
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Int()
		case "message":
			message, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	require.NoError(t, err)
	return code, message
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := hit(h, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:9999").Code)
	}

	w := hit(h, "10.0.0.1:9999")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	code, msg := decodeError(t, w.Body.Bytes())
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate limit exceeded", msg)
}

func TestRateLimit_Keys(t *testing.T) {
	tests := []struct {
		name   string
		cfg    RateLimitConfig
		first  func(*http.Request)
		second func(*http.Request)
		want   int
	}{
		{
			name:   "different ips are independent",
			first:  func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1234" },
			second: func(r *http.Request) { r.RemoteAddr = "10.0.0.2:1234" },
			want:   http.StatusOK,
		},
		{
			name:   "same ip different port shares limit",
			first:  func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1234" },
			second: func(r *http.Request) { r.RemoteAddr = "10.0.0.1:5678" },
			want:   http.StatusTooManyRequests,
		},
		{
			name:   "first forwarded address wins",
			first:  func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18") },
			second: func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50") },
			want:   http.StatusTooManyRequests,
		},
		{
			name:   "real ip header",
			first:  func(r *http.Request) { r.Header.Set("X-Real-IP", "198.51.100.7") },
			second: func(r *http.Request) { r.Header.Set("X-Real-IP", "198.51.100.8") },
			want:   http.StatusOK,
		},
		{
			name: "custom key",
			cfg: RateLimitConfig{KeyFunc: func(r *http.Request) string {
				c, err := r.Cookie("session_id")
				if err != nil {
					return ""
				}
				return c.Value
			}},
			first:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session_id", Value: "a"}) },
			second: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session_id", Value: "b"}) },
			want:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Max = 1
			cfg.Window = time.Minute
			h := RateLimit(cfg)(okHandler())

			require.Equal(t, http.StatusOK, hit(h, "192.168.1.1:4444", tt.first).Code)
			assert.Equal(t, tt.want, hit(h, "192.168.1.1:4444", tt.second).Code)
		})
	}
}

func TestRateLimit_Skip(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		Skip:   func(r *http.Request) bool { return r.URL.Path == "/livez" },
	})(okHandler())

	probe := func(r *http.Request) { r.URL.Path = "/livez" }
	for range 3 {
		w := hit(h, "10.1.1.1:1", probe)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 4, Window: time.Minute})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := range 4 {
		require.True(t, l.take("a", start.Add(time.Duration(i)*time.Second)).allowed)
	}
	require.False(t, l.take("a", start.Add(30*time.Second)).allowed)

	// A quarter into the next window, 3/4 of the previous 4 still count.
	v := l.take("a", start.Add(75*time.Second))
	require.True(t, v.allowed)
	assert.Equal(t, 0, v.remaining)
	assert.False(t, l.take("a", start.Add(75*time.Second)).allowed)

	// Two windows later the key starts fresh.
	v = l.take("a", start.Add(3*time.Minute))
	require.True(t, v.allowed)
	assert.Equal(t, 3, v.remaining)
}

func TestLimiter_Evict(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Second})
	now := time.Now()

	require.True(t, l.take("a", now).allowed)
	require.False(t, l.take("a", now).allowed)

	l.evict(now.Add(3 * time.Second))
	assert.Empty(t, l.counters)

	assert.True(t, l.take("a", now.Add(3*time.Second)).allowed)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		remote string
		want   string
	}{
		{name: "remote addr", remote: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "remote without port", remote: "10.0.0.1", want: "10.0.0.1"},
		{name: "forwarded list", header: http.Header{"X-Forwarded-For": {"203.0.113.50, 70.41.3.18"}}, remote: "10.0.0.1:1", want: "203.0.113.50"},
		{name: "real ip", header: http.Header{"X-Real-Ip": {"198.51.100.7"}}, remote: "10.0.0.1:1", want: "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header[k] = v
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
