// Package engine selects and manages the decode backend used by a scan:
// either a channel to an out-of-process decode worker or an in-process
// native detector.
package engine

import (
	"errors"
	"log/slog"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/qrscan-dev/qrscan/internal/detect"
	"github.com/qrscan-dev/qrscan/internal/wire"
)

// Kind tags the two engine variants.
type Kind int

const (
	KindWorker Kind = iota + 1
	KindNative
)

func (k Kind) String() string {
	switch k {
	case KindWorker:
		return "worker"
	case KindNative:
		return "native"
	default:
		return "unknown"
	}
}

// workerExitGrace bounds how long Close waits for a spawned worker
// process to exit after the close message before killing it.
const workerExitGrace = 5 * time.Second

// Engine is a tagged union: exactly one of the channel or the detector
// is set, and the scan orchestrator dispatches on Kind at a single
// point.
type Engine struct {
	kind     Kind
	channel  *wire.Channel
	detector detect.Detector
	proc     *exec.Cmd // non-nil when this engine owns a spawned worker process
}

// NewWorkerEngine wraps a worker channel. proc may be nil when the
// channel talks to an externally managed worker.
func NewWorkerEngine(ch *wire.Channel, proc *exec.Cmd) *Engine {
	return &Engine{kind: KindWorker, channel: ch, proc: proc}
}

// NewNativeEngine wraps a native detector.
func NewNativeEngine(det detect.Detector) *Engine {
	return &Engine{kind: KindNative, detector: det}
}

// Kind returns the variant tag.
func (e *Engine) Kind() Kind { return e.kind }

// Channel returns the worker channel; nil for native engines.
func (e *Engine) Channel() *wire.Channel { return e.channel }

// Detector returns the native detector; nil for worker engines.
func (e *Engine) Detector() detect.Detector { return e.detector }

// SetInversionMode configures whether decoding also tries color-inverted
// rasters. For worker engines this is a fire-and-forget protocol
// message; native backends are updated in place when they support it.
func (e *Engine) SetInversionMode(mode string) error {
	switch e.kind {
	case KindWorker:
		_, err := e.channel.Send(wire.TypeInversionMode, mode)
		return err
	case KindNative:
		if inv, ok := e.detector.(interface{ SetInversionMode(string) }); ok {
			inv.SetInversionMode(mode)
			return nil
		}
		return nil
	default:
		return errors.New("engine: no backend")
	}
}

// Close tears the engine down. A worker engine that owns its process
// sends the close message and reaps it (killed after a grace period if
// it does not exit); one dialed to an external worker only detaches,
// leaving the worker running. Native engines delegate to the backend.
func (e *Engine) Close() error {
	switch e.kind {
	case KindWorker:
		if e.proc == nil {
			return e.channel.Detach()
		}
		err := e.channel.Close()
		e.reapWorker()
		return err
	case KindNative:
		return e.detector.Close()
	default:
		return nil
	}
}

func (e *Engine) reapWorker() {
	if e.proc == nil {
		return
	}
	done := make(chan error, 1)
	go func() { done <- e.proc.Wait() }()
	select {
	case <-done:
	case <-time.After(workerExitGrace):
		slog.Warn("Worker did not exit after close, killing", "pid", e.proc.Process.Pid)
		_ = e.proc.Process.Kill()
		<-done
	}
	e.proc = nil
}

// nativeDisabled is the process-wide sticky downgrade flag. It makes a
// single one-way transition and is never cleared within the process.
var nativeDisabled atomic.Bool

// DisableNative latches the native detector path off for the rest of the
// process lifetime.
func DisableNative() {
	if !nativeDisabled.Swap(true) {
		slog.Info("Native detector path disabled for this process")
	}
}

// NativeDisabled reports whether the native path has been latched off.
func NativeDisabled() bool { return nativeDisabled.Load() }
