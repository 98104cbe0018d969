package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/qrscan-dev/qrscan/internal/detect"
	"github.com/qrscan-dev/qrscan/internal/platform"
)

// Selector decides which backend serves scans. The probe result (native
// capability plus platform exclusion) is memoized per selector; the
// process-wide sticky flag overrides it at any time. Engine handles
// themselves are created fresh per Acquire so every scan can close what
// it created without affecting later scans.
type Selector struct {
	launch LaunchOptions

	mu        sync.Mutex
	probed    bool
	useNative bool
}

// NewSelector returns a selector spawning workers per launch.
func NewSelector(launch LaunchOptions) *Selector {
	return &Selector{launch: launch}
}

// Acquire produces an engine for one scan call chain.
//
// Decision order: sticky-disabled or forced worker -> worker; native
// backend missing, QR unsupported, or platform excluded -> worker;
// otherwise native. Probe failures count as excluded.
func (s *Selector) Acquire(ctx context.Context) (*Engine, error) {
	if s.useWorker() {
		return launchWorker(ctx, s.launch)
	}
	det, err := detect.New()
	if err != nil {
		// Probe said the backend exists; construction failing anyway
		// means the probe is stale, so fall back to the worker.
		slog.Warn("Native detector construction failed, using worker", "error", err)
		return launchWorker(ctx, s.launch)
	}
	return NewNativeEngine(det), nil
}

func (s *Selector) useWorker() bool {
	if NativeDisabled() || s.launch.ForceWorker {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.probed {
		s.useNative = probeNative()
		s.probed = true
	}
	return !s.useNative
}

// probeNative reports whether the native detector path is usable: the
// backend must exist, advertise QR support, and the host must not be an
// excluded platform.
func probeNative() bool {
	det, err := detect.New()
	if err != nil {
		slog.Debug("No native detector backend", "error", err)
		return false
	}
	defer func() { _ = det.Close() }()

	formats, err := det.SupportedFormats()
	if err != nil || !slices.Contains(formats, detect.FormatQR) {
		slog.Debug("Native detector does not support QR", "formats", formats, "error", err)
		return false
	}

	info, probeErr := platform.Probe()
	if platform.Excluded(info, probeErr) {
		slog.Debug("Platform excluded from native detection",
			"os", info.OS, "arch", info.Arch, "version", info.OSVersion, "error", probeErr)
		return false
	}
	return true
}
