package detect

import (
	"context"
	"image"
	"time"

	"github.com/qrscan-dev/qrscan/internal/scanerr"
)

// DefaultTimeout bounds a single detection when the caller does not
// override it. It matches the worker channel's default deadline.
const DefaultTimeout = 10 * time.Second

// WithTimeout runs det.Detect under the same timeout contract as the
// worker path.
//
// At least one detection resolves to its raw value. Zero detections
// resolve to the literal "No QR code found" value. That is a resolved
// result, not an error, unlike the worker path.
// Capability failures surface as *CapabilityError, anything else as a
// scanner error. The detection itself is not cancelled on timeout; its
// late result is dropped.
func WithTimeout(ctx context.Context, det Detector, img image.Image, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	type outcome struct {
		data string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		detections, err := det.Detect(img)
		switch {
		case err != nil && isCapabilityFailure(err):
			done <- outcome{err: &CapabilityError{Msg: err.Error()}}
		case err != nil:
			done <- outcome{err: scanerr.Scanner(err.Error())}
		case len(detections) == 0:
			done <- outcome{data: scanerr.NoQRCodeFound}
		default:
			done <- outcome{data: detections[0].RawValue}
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case o := <-done:
		return o.data, o.err
	case <-timer.C:
		return "", scanerr.ErrTimeout
	case <-ctx.Done():
		return "", scanerr.Scanner(ctx.Err().Error())
	}
}
