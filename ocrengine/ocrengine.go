// Package ocrengine defines the OCR engine contract and its lifecycle helpers.
//
// Two lifetimes coexist:
//   - a shared engine created once at process start, passed to the image
//     path, and closed at shutdown;
//   - a scoped engine opened for one scanned-PDF fallback call and closed on
//     every exit path of that call (see WithSession).
//
// The tesseract-backed implementation lives in ocrengine/tesseract.
package ocrengine

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMinImageBytes is the smallest buffer accepted for recognition.
const DefaultMinImageBytes = 1000

var (
	// ErrInvalidImageBuffer is returned for empty or implausibly small input.
	ErrInvalidImageBuffer = errors.New("ocrengine: invalid image buffer")

	// ErrClosed is returned by Recognize after Close.
	ErrClosed = errors.New("ocrengine: engine closed")
)

// Recognizer turns an encoded image into text.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte) (string, error)
}

// Session is a Recognizer with an explicit terminate step.
type Session interface {
	Recognizer
	Close() error
}

// Opener initializes a new Session.
type Opener func(ctx context.Context) (Session, error)

// CheckImage rejects buffers shorter than min bytes.
func CheckImage(img []byte, min int) error {
	if min <= 0 {
		min = DefaultMinImageBytes
	}
	if len(img) < min {
		return fmt.Errorf("%w: %d bytes (min %d)", ErrInvalidImageBuffer, len(img), min)
	}
	return nil
}

// WithSession opens a session, runs fn with it and closes it, whether fn
// returns normally, fails or panics. A close error is joined to fn's error.
func WithSession(ctx context.Context, open Opener, fn func(Recognizer) error) (err error) {
	s, err := open(ctx)
	if err != nil {
		return fmt.Errorf("ocrengine: open session: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("ocrengine: close session: %w", cerr))
		}
	}()
	return fn(s)
}
