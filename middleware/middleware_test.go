package middleware

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
)

const testSecret = "test-secret"

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", Protected(testSecret), func(c *fiber.Ctx) error {
		return c.SendString(CallerID(c) + "|" + string(CallerRole(c)))
	})
	app.Get("/teach", Protected(testSecret), TeacherRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestProtectedExposesCaller(t *testing.T) {
	app := newApp()
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, jwt.MapClaims{
		"user_id": "u1",
		"role":    "teacher",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != "u1|teacher" {
		t.Fatalf("response: status=%d body=%s", resp.StatusCode, body)
	}
}

func TestProtectedRejects(t *testing.T) {
	app := newApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("missing token: want=400 got=%d", resp.StatusCode)
	}

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, jwt.MapClaims{
		"user_id": "u1",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	}))
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expired token: want=401 got=%d", resp.StatusCode)
	}
}

func TestTeacherRequired(t *testing.T) {
	app := newApp()
	for role, want := range map[string]int{"teacher": fiber.StatusNoContent, "student": fiber.StatusForbidden} {
		req := httptest.NewRequest("GET", "/teach", nil)
		req.Header.Set("Authorization", "Bearer "+signed(t, jwt.MapClaims{
			"user_id": "u1",
			"role":    role,
			"exp":     time.Now().Add(time.Hour).Unix(),
		}))
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != want {
			t.Fatalf("role %s: want=%d got=%d", role, want, resp.StatusCode)
		}
	}
}

func TestRateLimiterWithoutRedisPassesThrough(t *testing.T) {
	app := fiber.New()
	app.Get("/", NewRateLimiter(nil, nil, nil).Limit("test", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != fiber.StatusNoContent {
			t.Fatalf("request #%d: want=204 got=%d", i, resp.StatusCode)
		}
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	app := fiber.New()
	app.Get("/", NewRateLimiter(client, nil, nil).Limit("test", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), 5000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("want=204 got=%d", resp.StatusCode)
	}
}

// fakeCounter answers the limiter's commands in place of a Redis server.
type fakeCounter struct {
	mu      sync.Mutex
	window  time.Duration
	stale   bool
	counts  map[string]int64
	ttls    map[string]time.Duration
	setArgs []interface{}
	expires int
}

func newFakeCounter(window time.Duration, stale bool) *fakeCounter {
	return &fakeCounter{
		window: window,
		stale:  stale,
		counts: map[string]int64{},
		ttls:   map[string]time.Duration{},
	}
}

func (f *fakeCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, fmt.Errorf("no server")
	}
}

func (f *fakeCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if cmd.Name() == "expire" {
			f.expires++
			f.ttls[fmt.Sprint(cmd.Args()[1])] = f.window
			cmd.(*redis.BoolCmd).SetVal(true)
			return nil
		}
		return fmt.Errorf("unexpected command %s", cmd.Name())
	}
}

func (f *fakeCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, cmd := range cmds {
			args := cmd.Args()
			switch c := cmd.(type) {
			case *redis.BoolCmd:
				key := fmt.Sprint(args[1])
				f.setArgs = args
				if _, ok := f.counts[key]; ok {
					continue
				}
				f.counts[key] = 0
				f.ttls[key] = f.window
				if f.stale {
					f.ttls[key] = -1
				}
				c.SetVal(!f.stale)
			case *redis.IntCmd:
				key := fmt.Sprint(args[1])
				f.counts[key]++
				c.SetVal(f.counts[key])
			case *redis.DurationCmd:
				c.SetVal(f.ttls[fmt.Sprint(args[1])])
			}
		}
		return nil
	}
}

func limitedApp(client *redis.Client, limit int) *fiber.App {
	app := fiber.New()
	app.Get("/", NewRateLimiter(client, nil, nil).Limit("test", limit, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestRateLimiterSetsExpiryWithCounter(t *testing.T) {
	fake := newFakeCounter(time.Minute, false)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	client.AddHook(fake)
	defer client.Close()

	app := limitedApp(client, 2)
	for i, want := range []int{fiber.StatusNoContent, fiber.StatusNoContent, fiber.StatusTooManyRequests} {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != want {
			t.Fatalf("request #%d: want=%d got=%d", i, want, resp.StatusCode)
		}
		if want == fiber.StatusTooManyRequests && resp.Header.Get(fiber.HeaderRetryAfter) != "60" {
			t.Fatalf("retry-after: want=60 got=%q", resp.Header.Get(fiber.HeaderRetryAfter))
		}
	}
	if len(fake.setArgs) < 6 || fmt.Sprint(fake.setArgs[3:]) != "[ex 60 nx]" {
		t.Fatalf("seed command: got=%v", fake.setArgs)
	}
	if fake.expires != 0 {
		t.Fatalf("separate expire calls: want=0 got=%d", fake.expires)
	}
}

func TestRateLimiterRepairsKeyWithoutExpiry(t *testing.T) {
	fake := newFakeCounter(time.Minute, true)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	client.AddHook(fake)
	defer client.Close()

	app := limitedApp(client, 1)
	for i, want := range []int{fiber.StatusNoContent, fiber.StatusTooManyRequests} {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != want {
			t.Fatalf("request #%d: want=%d got=%d", i, want, resp.StatusCode)
		}
	}
	if fake.expires != 1 {
		t.Fatalf("expiry repairs: want=1 got=%d", fake.expires)
	}
}
