// Package detect wraps the in-process detection capability behind the
// same result contract as the worker channel.
//
// The default build carries a gozxing-backed detector. Building with the
// tag `qrscan_nonative` links a stub whose calls fail with "not
// implemented", which exercises the runtime downgrade to the worker
// path.
package detect

import (
	"image"
	"strings"
)

// FormatQR is the symbology identifier detectors advertise.
const FormatQR = "qr_code"

// Detection is a single decoded symbol with its corner points.
type Detection struct {
	RawValue     string
	CornerPoints []image.Point
}

// Detector is the native single-shot detection capability.
type Detector interface {
	// SupportedFormats lists the symbologies this detector can find.
	SupportedFormats() ([]string, error)

	// Detect searches img and returns all detections, possibly none.
	Detect(img image.Image) ([]Detection, error)

	// Close releases detector resources.
	Close() error
}

// New returns the detector backend compiled into this binary.
func New() (Detector, error) { return newBackend() }

// CapabilityError reports that native detection is missing at runtime.
// Scans recover from it by permanently downgrading to the worker path;
// the message only reaches callers if the downgraded retry fails too.
type CapabilityError struct {
	Msg string
}

func (e *CapabilityError) Error() string {
	return "Scanner error: " + e.Msg
}

// isCapabilityFailure matches the error messages that signal a missing
// capability rather than a failed detection.
func isCapabilityFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not implemented") ||
		strings.Contains(msg, "service unavailable")
}
