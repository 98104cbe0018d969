package qrscan_test

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrscan-dev/qrscan"
	"github.com/qrscan-dev/qrscan/internal/detect"
	"github.com/qrscan-dev/qrscan/internal/engine"
	"github.com/qrscan-dev/qrscan/internal/testutil"
	"github.com/qrscan-dev/qrscan/internal/worker"
)

// startWorker runs an in-process worker server so scans never spawn a
// child process (the default worker command is the current executable,
// which is the test binary here).
func startWorker(t *testing.T) string {
	t.Helper()

	srv := worker.New()
	_, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Run(nil) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv.URL()
}

func workerScanner(t *testing.T) *qrscan.Scanner {
	t.Helper()
	return qrscan.New(qrscan.Config{
		Worker: engine.LaunchOptions{Addr: startWorker(t), ForceWorker: true},
	})
}

// fakeDetector scripts the native path.
type fakeDetector struct {
	mu         sync.Mutex
	detections []detect.Detection
	err        error
	delay      time.Duration
	calls      int
	closed     bool
}

func (f *fakeDetector) SupportedFormats() ([]string, error) {
	return []string{detect.FormatQR}, nil
}

func (f *fakeDetector) Detect(image.Image) ([]detect.Detection, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.detections, f.err
}

func (f *fakeDetector) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDetector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestScanWorkerSuccess(t *testing.T) {
	s := workerScanner(t)

	res, err := s.Scan(context.Background(), testutil.EncodeQR(t, "worker path", 256), qrscan.Options{})
	require.NoError(t, err)
	assert.Equal(t, "worker path", res.Data)
}

func TestScanWorkerNoQRCode(t *testing.T) {
	s := workerScanner(t)

	_, err := s.Scan(context.Background(), testutil.BlankImage(128, 128), qrscan.Options{})
	require.ErrorIs(t, err, qrscan.ErrNoQRCodeFound)
	assert.Equal(t, "No QR code found", err.Error())
}

func TestScanEncodedBytes(t *testing.T) {
	s := workerScanner(t)

	res, err := s.Scan(context.Background(), testutil.EncodeQRPNG(t, "from bytes", 256), qrscan.Options{})
	require.NoError(t, err)
	assert.Equal(t, "from bytes", res.Data)
}

func TestScanUnsupportedInput(t *testing.T) {
	eng := engine.NewNativeEngine(&fakeDetector{})

	_, err := qrscan.Scan(context.Background(), 42, qrscan.Options{Engine: eng})
	require.ErrorIs(t, err, qrscan.ErrUnsupportedImageType)
	assert.Equal(t, "Unsupported image type.", err.Error())
}

func TestScanImageLoadError(t *testing.T) {
	eng := engine.NewNativeEngine(&fakeDetector{})

	_, err := qrscan.Scan(context.Background(), []byte("not an image"), qrscan.Options{Engine: eng})
	require.ErrorIs(t, err, qrscan.ErrImageLoad)
	assert.Equal(t, "Image load error", err.Error())
}

func TestScanNativeDetection(t *testing.T) {
	det := &fakeDetector{detections: []detect.Detection{{RawValue: "native data"}}}
	eng := engine.NewNativeEngine(det)

	res, err := qrscan.Scan(context.Background(), testutil.BlankImage(64, 64), qrscan.Options{Engine: eng})
	require.NoError(t, err)
	assert.Equal(t, "native data", res.Data)
}

func TestScanNativeZeroDetectionsResolves(t *testing.T) {
	// The native path resolves an empty result with the sentinel text
	// instead of failing, unlike the worker path.
	det := &fakeDetector{}
	eng := engine.NewNativeEngine(det)

	res, err := qrscan.Scan(context.Background(), testutil.BlankImage(64, 64), qrscan.Options{Engine: eng})
	require.NoError(t, err)
	assert.Equal(t, "No QR code found", res.Data)
}

func TestScanExternalEngineNeverClosed(t *testing.T) {
	det := &fakeDetector{}
	eng := engine.NewNativeEngine(det)

	_, err := qrscan.Scan(context.Background(), testutil.BlankImage(64, 64), qrscan.Options{Engine: eng})
	require.NoError(t, err)
	assert.False(t, det.closed, "supplied engines belong to the caller")
}

func TestScanNativeTimeout(t *testing.T) {
	det := &fakeDetector{delay: 500 * time.Millisecond}
	eng := engine.NewNativeEngine(det)

	_, err := qrscan.Scan(context.Background(), testutil.BlankImage(64, 64), qrscan.Options{
		Engine:  eng,
		Timeout: 50 * time.Millisecond,
	})
	require.ErrorIs(t, err, qrscan.ErrTimeout)
	assert.Equal(t, "Scanner error: timeout", err.Error())
}

func TestScanCapabilityDowngrade(t *testing.T) {
	// A native engine whose capability is missing at runtime downgrades
	// to the worker transparently within the same call, and the supplied
	// engine is dropped, not closed.
	det := &fakeDetector{err: errors.New("barcode detection not implemented")}
	eng := engine.NewNativeEngine(det)

	s := workerScanner(t)
	res, err := s.Scan(context.Background(), testutil.EncodeQR(t, "downgraded", 256), qrscan.Options{Engine: eng})
	require.NoError(t, err)
	assert.Equal(t, "downgraded", res.Data)
	assert.False(t, det.closed)
	assert.True(t, engine.NativeDisabled())
}

func TestScanRegionRetrySucceeds(t *testing.T) {
	img := testutil.EmbedQR(t, "off center", 200, 400, 400, 150, 150)
	s := workerScanner(t)

	// The region covers only blank canvas; the retry drops it and scans
	// the full extent.
	res, err := s.Scan(context.Background(), img, qrscan.Options{
		ScanRegion:               &qrscan.Region{X: 0, Y: 0, Width: 80, Height: 80},
		AlsoTryWithoutScanRegion: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "off center", res.Data)
}

func TestScanRegionRetryAtMostOnce(t *testing.T) {
	det := &fakeDetector{err: errors.New("boom")}
	eng := engine.NewNativeEngine(det)

	_, err := qrscan.Scan(context.Background(), testutil.BlankImage(200, 200), qrscan.Options{
		Engine:                   eng,
		ScanRegion:               &qrscan.Region{X: 0, Y: 0, Width: 50, Height: 50},
		AlsoTryWithoutScanRegion: true,
	})
	require.Error(t, err)
	assert.Equal(t, "Scanner error: boom", err.Error())
	assert.Equal(t, 2, det.callCount(), "one region attempt, one full-extent retry")
}

func TestScanRegionNoRetryWithoutFlag(t *testing.T) {
	det := &fakeDetector{err: errors.New("boom")}
	eng := engine.NewNativeEngine(det)

	_, err := qrscan.Scan(context.Background(), testutil.BlankImage(200, 200), qrscan.Options{
		Engine:     eng,
		ScanRegion: &qrscan.Region{X: 0, Y: 0, Width: 50, Height: 50},
	})
	require.Error(t, err)
	assert.Equal(t, 1, det.callCount())
}

func TestScanCanvasReusedAcrossCalls(t *testing.T) {
	s := workerScanner(t)
	surface := qrscan.NewSurface(0, 0)

	for _, text := range []string{"first", "second"} {
		res, err := s.Scan(context.Background(), testutil.EncodeQR(t, text, 256), qrscan.Options{Canvas: surface})
		require.NoError(t, err)
		assert.Equal(t, text, res.Data)
	}
	assert.Equal(t, 256, surface.Width())
	assert.Equal(t, 256, surface.Height())
}

func TestScanRegionDownscale(t *testing.T) {
	s := workerScanner(t)
	surface := qrscan.NewSurface(0, 0)

	res, err := s.Scan(context.Background(), testutil.EncodeQR(t, "shrunk", 512), qrscan.Options{
		Canvas: surface,
		ScanRegion: &qrscan.Region{
			Width: 512, Height: 512,
			DownScaledWidth: 256, DownScaledHeight: 256,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "shrunk", res.Data)
	assert.Equal(t, 256, surface.Width())
}

func TestCreateEngineReuse(t *testing.T) {
	s := workerScanner(t)

	eng, err := s.CreateEngine(context.Background())
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()
	assert.Equal(t, engine.KindWorker, eng.Kind())

	for _, text := range []string{"one", "two", "three"} {
		res, err := s.Scan(context.Background(), testutil.EncodeQR(t, text, 256), qrscan.Options{Engine: eng})
		require.NoError(t, err)
		assert.Equal(t, text, res.Data)
	}
}

func TestScanInversionModeApplied(t *testing.T) {
	s := qrscan.New(qrscan.Config{
		Worker:        engine.LaunchOptions{Addr: startWorker(t), ForceWorker: true},
		InversionMode: "both",
	})

	res, err := s.Scan(context.Background(), testutil.InvertedQR(t, "inverted scan", 256), qrscan.Options{})
	require.NoError(t, err)
	assert.Equal(t, "inverted scan", res.Data)
}
