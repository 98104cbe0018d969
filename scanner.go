package qrscan

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/qrscan-dev/qrscan/internal/canvas"
	"github.com/qrscan-dev/qrscan/internal/detect"
	"github.com/qrscan-dev/qrscan/internal/engine"
	"github.com/qrscan-dev/qrscan/internal/normalize"
	"github.com/qrscan-dev/qrscan/internal/scanerr"
	"github.com/qrscan-dev/qrscan/internal/wire"
)

// DefaultTimeout is the decode deadline applied when Options.Timeout is
// zero.
const DefaultTimeout = wire.DefaultTimeout

// Region selects a sub-rectangle of the input and an optional down-scale
// target for the projected raster.
type Region = canvas.Region

// Surface is the reusable raster scan inputs are projected onto. A
// caller-supplied surface is reused across calls and mutated in place;
// concurrent scans must not share one.
type Surface = canvas.Surface

// NewSurface returns a surface with the given initial dimensions.
func NewSurface(width, height int) *Surface { return canvas.NewSurface(width, height) }

// Engine is a decode backend handle: either a worker channel or a native
// detector. Engines are safe to hold across scan calls.
type Engine = engine.Engine

// Errors surfaced by Scan. The strings are the contract; callers match
// them literally.
var (
	ErrNoQRCodeFound        = scanerr.ErrNoQRCodeFound
	ErrImageLoad            = scanerr.ErrImageLoad
	ErrUnsupportedImageType = scanerr.ErrUnsupportedImageType
	ErrTimeout              = scanerr.ErrTimeout
)

// Result is a successful scan.
type Result struct {
	Data string `json:"data" yaml:"data"`
}

// Options control a single Scan call.
type Options struct {
	// ScanRegion restricts decoding to a sub-rectangle of the input.
	// Nil scans the full extent.
	ScanRegion *Region

	// Engine reuses an existing backend handle. The scanner never
	// closes a supplied engine.
	Engine *Engine

	// Canvas reuses a projection surface across calls.
	Canvas *Surface

	// DisallowCanvasResizing keeps the surface at its current
	// dimensions instead of matching the region.
	DisallowCanvasResizing bool

	// AlsoTryWithoutScanRegion retries a failing scan once with the
	// region dropped.
	AlsoTryWithoutScanRegion bool

	// Timeout bounds each decode attempt. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Config configures a Scanner.
type Config struct {
	// Worker controls how worker engines are launched.
	Worker engine.LaunchOptions

	// InversionMode is applied to engines the scanner creates:
	// "original", "invert" or "both".
	InversionMode string
}

// Scanner orchestrates scans across the worker and native backends.
// Safe for concurrent use; concurrent scans must not share a canvas.
type Scanner struct {
	selector  *engine.Selector
	inversion string
}

// New returns a scanner.
func New(cfg Config) *Scanner {
	return &Scanner{
		selector:  engine.NewSelector(cfg.Worker),
		inversion: cfg.InversionMode,
	}
}

var defaultScanner = New(Config{})

// Scan scans input with the process-default scanner.
func Scan(ctx context.Context, input any, opts Options) (Result, error) {
	return defaultScanner.Scan(ctx, input, opts)
}

// CreateEngine selects and constructs an engine the caller can reuse
// across scans via Options.Engine. The caller owns it and must close it.
func (s *Scanner) CreateEngine(ctx context.Context) (*Engine, error) {
	eng, err := s.selector.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	s.applyInversion(eng)
	return eng, nil
}

// Scan scans input for a QR code.
//
// Accepted inputs: image.Image, *Surface, []byte, io.Reader, and string
// (filesystem path or http(s) URL). On success the result data is the
// decoded text; on the native path a scan that completes without
// detections also succeeds, carrying "No QR code found" as data. All
// failures reject with the documented literal error strings.
func (s *Scanner) Scan(ctx context.Context, input any, opts Options) (Result, error) {
	session := uuid.New().String()
	start := time.Now()

	// ACQUIRING: the engine handle and the drawable image resolve
	// concurrently. Whether the engine was supplied governs cleanup.
	external := opts.Engine != nil
	type acquired struct {
		eng *engine.Engine
		err error
	}
	engCh := make(chan acquired, 1)
	if external {
		engCh <- acquired{eng: opts.Engine}
	} else {
		go func() {
			eng, err := s.selector.Acquire(ctx)
			engCh <- acquired{eng: eng, err: err}
		}()
	}

	img, imgErr := normalize.Image(ctx, input)
	acq := <-engCh

	eng := acq.eng
	var owned *engine.Engine
	if !external {
		owned = eng
	}
	// CLEANUP: engines created by this call are closed on every path.
	// Close failures are logged, never allowed to mask the outcome.
	defer func() {
		if owned != nil {
			if cerr := owned.Close(); cerr != nil {
				slog.Warn("Engine close failed", "session", session, "error", cerr)
			}
		}
	}()

	if acq.err != nil {
		return Result{}, scanerr.Scanner(acq.err.Error())
	}
	if imgErr != nil {
		return Result{}, imgErr
	}
	if owned != nil {
		s.applyInversion(owned)
	}

	surface := opts.Canvas
	if surface == nil {
		surface = canvas.NewSurface(0, 0)
	}

	region := opts.ScanRegion
	retryWithoutRegion := opts.AlsoTryWithoutScanRegion && region != nil
	downgraded := false

	for {
		// PROJECTING
		_, pix := canvas.Project(img, region, surface, opts.DisallowCanvasResizing)

		// DECODING
		data, err := dispatch(ctx, eng, pix, opts.Timeout)
		if err == nil {
			scansTotal.WithLabelValues(eng.Kind().String(), "ok").Inc()
			scanDuration.WithLabelValues(eng.Kind().String()).Observe(time.Since(start).Seconds())
			slog.Debug("Scan succeeded", "session", session, "engine", eng.Kind().String())
			return Result{Data: data}, nil
		}

		var capErr *detect.CapabilityError
		if errors.As(err, &capErr) && !downgraded {
			// The native capability is missing at runtime. Latch the
			// process-wide downgrade, drop any supplied engine and
			// re-select; selection now always yields the worker.
			downgraded = true
			engine.DisableNative()
			nativeDowngradesTotal.Inc()
			slog.Warn("Native detector unavailable, retrying on worker",
				"session", session, "error", capErr.Msg)

			if owned != nil {
				if cerr := owned.Close(); cerr != nil {
					slog.Warn("Engine close failed", "session", session, "error", cerr)
				}
			}
			owned = nil
			external = false

			fresh, aerr := s.selector.Acquire(ctx)
			if aerr != nil {
				return Result{}, scanerr.Scanner(aerr.Error())
			}
			eng, owned = fresh, fresh
			s.applyInversion(eng)
			continue
		}

		// RETRY_NO_REGION: one restart with the full extent, reusing
		// the engine and surface; the flag flips off so the retry
		// cannot recurse.
		if region != nil && retryWithoutRegion {
			region = nil
			retryWithoutRegion = false
			continue
		}

		scansTotal.WithLabelValues(eng.Kind().String(), outcomeLabel(err)).Inc()
		slog.Debug("Scan failed", "session", session, "engine", eng.Kind().String(), "error", err)
		return Result{}, err
	}
}

// dispatch is the single point where the engine's variant decides the
// decode path.
func dispatch(ctx context.Context, eng *engine.Engine, pix *image.RGBA, timeout time.Duration) (string, error) {
	switch eng.Kind() {
	case engine.KindWorker:
		return eng.Channel().Request(ctx, wire.TypeDecode, wire.NewDecodePayload(pix), timeout)
	case engine.KindNative:
		return detect.WithTimeout(ctx, eng.Detector(), pix, timeout)
	default:
		return "", scanerr.Scanner("no decode backend")
	}
}

func (s *Scanner) applyInversion(eng *engine.Engine) {
	if s.inversion == "" {
		return
	}
	if err := eng.SetInversionMode(s.inversion); err != nil {
		slog.Warn("Inversion mode not applied", "mode", s.inversion, "error", err)
	}
}

func outcomeLabel(err error) string {
	if errors.Is(err, scanerr.ErrNoQRCodeFound) {
		return "not_found"
	}
	if errors.Is(err, scanerr.ErrTimeout) {
		return "timeout"
	}
	return "error"
}
