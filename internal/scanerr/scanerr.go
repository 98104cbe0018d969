// Package scanerr defines the error values surfaced by scan operations.
// The exact strings are part of the public contract: callers match on
// them literally, so they must never change.
package scanerr

import (
	"errors"
	"fmt"
)

// NoQRCodeFound is the literal message used both as an error (worker
// path) and as a resolved result value (native path, zero detections).
const NoQRCodeFound = "No QR code found"

var (
	// ErrNoQRCodeFound reports that a decode completed without finding
	// a QR code. This is an expected outcome, not a system fault.
	ErrNoQRCodeFound = errors.New(NoQRCodeFound)

	// ErrImageLoad reports that the scan input could not be loaded or
	// decoded into an image.
	ErrImageLoad = errors.New("Image load error")

	// ErrUnsupportedImageType reports an input shape the normalizer
	// does not accept. The trailing period is part of the contract.
	ErrUnsupportedImageType = errors.New("Unsupported image type.")

	// ErrTimeout reports that a decode did not complete before the
	// configured deadline.
	ErrTimeout = errors.New("Scanner error: timeout")
)

// Scanner wraps a backend failure message in the scanner error format.
// An empty message becomes "Unknown Error".
func Scanner(msg string) error {
	if msg == "" {
		msg = "Unknown Error"
	}
	return fmt.Errorf("Scanner error: %s", msg)
}
