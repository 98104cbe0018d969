//go:build qrscan_nonative

package detect

import (
	"errors"
	"image"
)

// ErrNotImplemented is returned by every call on the stub backend. Its
// message triggers the permanent worker downgrade at scan time.
var ErrNotImplemented = errors.New("not implemented: no native detector backend linked")

func newBackend() (Detector, error) {
	return &noBackend{}, nil
}

type noBackend struct{}

func (n *noBackend) SupportedFormats() ([]string, error) { return nil, ErrNotImplemented }

func (n *noBackend) Detect(_ image.Image) ([]Detection, error) { return nil, ErrNotImplemented }

func (n *noBackend) Close() error { return nil }
