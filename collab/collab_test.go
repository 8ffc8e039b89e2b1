package collab

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) HandlerMiddleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, p []byte) ([]byte, error) {
				order = append(order, name)
				return next(ctx, p)
			}
		}
	}
	base := func(context.Context, []byte) ([]byte, error) {
		order = append(order, "base")
		return []byte("ok"), nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil || string(resp) != "ok" {
		t.Fatalf("resp=%q err=%v", resp, err)
	}
	if strings.Join(order, ",") != "a,b,base" {
		t.Fatalf("order: %v", order)
	}
}

func TestTimeout(t *testing.T) {
	slow := func(ctx context.Context, _ []byte) ([]byte, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return []byte("late"), nil
		}
	}
	_, err := Timeout(20*time.Millisecond)(slow)(context.Background(), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v", err)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(discardLogger())(func(context.Context, []byte) ([]byte, error) {
		panic("kaboom")
	})
	_, err := h(context.Background(), nil)
	var ep *ErrPanic
	if !errors.As(err, &ep) {
		t.Fatalf("got %T: %v", err, err)
	}
	if ep.Value != "kaboom" {
		t.Fatalf("value: %v", ep.Value)
	}
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(
		WithBreakerThreshold(3),
		WithBreakerResetTimeout(100*time.Millisecond),
		WithBreakerClock(func() time.Time { return now }),
	)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
	if cb.Allow() {
		t.Fatal("open breaker allowed a call")
	}

	now = now.Add(200 * time.Millisecond)
	if cb.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != BreakerClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(
		WithBreakerThreshold(1),
		WithBreakerResetTimeout(50*time.Millisecond),
		WithBreakerClock(func() time.Time { return now }),
	)
	cb.RecordFailure()
	now = now.Add(100 * time.Millisecond)
	if cb.State() != BreakerHalfOpen {
		t.Fatal("expected half-open")
	}
	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatal("expected re-open after probe failure")
	}
}

func TestWithCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(WithBreakerThreshold(1))
	calls := 0
	base := func(context.Context, []byte) ([]byte, error) {
		calls++
		return nil, errors.New("fail")
	}
	h := WithCircuitBreaker(cb, "rasterizer")(base)

	if _, err := h(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	_, err := h(context.Background(), nil)
	var eco *ErrCircuitOpen
	if !errors.As(err, &eco) {
		t.Fatalf("expected ErrCircuitOpen, got %T: %v", err, err)
	}
	if eco.Service != "rasterizer" {
		t.Fatalf("service: %q", eco.Service)
	}
	if calls != 1 {
		t.Fatalf("base called %d times", calls)
	}
}

func TestWithCircuitBreaker_IgnoresCallerCancel(t *testing.T) {
	cb := NewCircuitBreaker(WithBreakerThreshold(1))
	h := WithCircuitBreaker(cb, "llm")(func(ctx context.Context, _ []byte) ([]byte, error) {
		return nil, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = h(ctx, nil)
	if cb.State() != BreakerClosed {
		t.Fatalf("caller cancel opened the breaker")
	}
}

func TestHTTPHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("echo:" + string(body)))
	}))
	defer srv.Close()

	build := func(auth string) RequestBuilder {
		return func(ctx context.Context, p []byte) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/v1?key=secret", strings.NewReader(string(p)))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+auth)
			return req, nil
		}
	}

	resp, err := HTTPHandler(srv.Client(), build("k"))(context.Background(), []byte("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "echo:hi" {
		t.Fatalf("got %q", resp)
	}

	_, err = HTTPHandler(srv.Client(), build("wrong"))(context.Background(), []byte("hi"))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if se.Code != http.StatusUnauthorized {
		t.Fatalf("code: %d", se.Code)
	}
	if strings.Contains(se.URL, "secret") {
		t.Fatalf("query leaked into error: %s", se.URL)
	}
}

func TestHTTPHandler_MaxBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	build := func(ctx context.Context, _ []byte) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	}
	_, err := HTTPHandler(srv.Client(), build, WithMaxResponseBytes(10))(context.Background(), nil)
	if err == nil {
		t.Fatal("expected size error")
	}
}
