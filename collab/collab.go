// Package collab is the outbound-call plumbing shared by the clients of the
// external collaborators (rasterizer, structured-extraction model, video
// index). Every call is a Handler: bytes in, bytes out. Cross-cutting
// behaviour (logging, timeout, panic recovery, circuit breaking) is layered
// with HandlerMiddleware.
//
// Calls are never retried: a failed call is reported to the caller as-is.
//
// Usage:
//
//	h := collab.HTTPHandler(http.DefaultClient, buildRequest)
//	h = collab.Chain(
//	    collab.Recovery(logger),
//	    collab.Logging(logger, "groq"),
//	    collab.WithCircuitBreaker(collab.NewCircuitBreaker(), "groq"),
//	    collab.Timeout(2*time.Minute),
//	)(h)
//	resp, err := h(ctx, body)
package collab

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// Handler performs one call to a collaborator.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// HandlerMiddleware wraps a Handler without changing its signature.
type HandlerMiddleware func(next Handler) Handler

// Chain composes middlewares left-to-right: the first one is the outermost
// wrapper.
func Chain(mws ...HandlerMiddleware) HandlerMiddleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call with its duration and payload sizes.
func Logging(logger *slog.Logger, service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			dur := time.Since(start)

			if err != nil {
				logger.WarnContext(ctx, "collaborator call failed",
					"service", service,
					"duration_ms", dur.Milliseconds(),
					"payload_bytes", len(payload),
					"error", err)
			} else {
				logger.DebugContext(ctx, "collaborator call ok",
					"service", service,
					"duration_ms", dur.Milliseconds(),
					"payload_bytes", len(payload),
					"response_bytes", len(resp))
			}
			return resp, err
		}
	}
}

// Timeout bounds the call duration. A zero or negative d disables it.
func Timeout(d time.Duration) HandlerMiddleware {
	return func(next Handler) Handler {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, payload)
		}
	}
}

// Recovery converts a panic in a downstream handler into *ErrPanic.
func Recovery(logger *slog.Logger) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "collaborator handler panic recovered",
						"panic", r,
						"stack", string(debug.Stack()))
					err = &ErrPanic{Value: r}
				}
			}()
			return next(ctx, payload)
		}
	}
}

// Standard is the chain used by the collaborator clients: recovery, logging,
// optional breaker, timeout.
func Standard(logger *slog.Logger, service string, cb *CircuitBreaker, timeout time.Duration) HandlerMiddleware {
	mws := []HandlerMiddleware{Recovery(logger), Logging(logger, service)}
	if cb != nil {
		mws = append(mws, WithCircuitBreaker(cb, service))
	}
	mws = append(mws, Timeout(timeout))
	return Chain(mws...)
}
