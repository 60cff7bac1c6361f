package internal

import (
	"context"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/niclashoyer/rtltcp/rtltcp/frame"
)

// forwarder writes the dongle header and then every device buffer, in
// order, to the client. It runs the device's blocking read loop.
type forwarder struct {
	codec    *frame.Codec
	dev      *guardedDevice
	shutdown *Shutdown
	info     frame.DongleInfo

	bufNum    int
	bufLen    int
	flushEach bool

	recancelled atomic.Bool

	log *log.Helper
}

func (f *forwarder) run(ctx context.Context) error {
	if err := f.codec.EncodeDongleInfo(f.info); err != nil {
		f.writeFailed(err)
		return nil
	}

	if f.shutdown.Requested() {
		return nil
	}

	err := f.dev.readAsync(f.forward, f.bufNum, f.bufLen)

	if f.shutdown.Requested() {
		return nil
	}

	if flushErr := f.codec.Flush(); flushErr != nil {
		f.log.Debugw("msg", "flush after stream end failed", "error", flushErr)
	}

	f.shutdown.Trigger(ReasonStreamEnded)

	if err != nil {
		return errors.Wrap(err, "device read loop failed")
	}

	f.log.Infow("msg", "device stream ended")

	return nil
}

// forward is the device callback. It must not block on anything but the
// connection write, which the coordinator unblocks with a deadline.
func (f *forwarder) forward(buf []byte) {
	if f.shutdown.Requested() {
		sampleBuffersDropped.Inc()
		f.cancelAgain()

		return
	}

	if err := f.codec.WriteSamples(buf); err != nil {
		f.writeFailed(err)
		return
	}

	if f.flushEach {
		if err := f.codec.Flush(); err != nil {
			f.writeFailed(err)
			return
		}
	}

	sampleBytesTotal.Add(float64(len(buf)))
}

// cancelAgain covers a cancel that raced with the start of the read loop.
func (f *forwarder) cancelAgain() {
	if !f.recancelled.CompareAndSwap(false, true) {
		return
	}

	if err := f.dev.cancelAsync(); err != nil {
		f.log.Debugw("msg", "cancel from callback failed", "error", err)
	}
}

func (f *forwarder) writeFailed(err error) {
	if f.shutdown.Trigger(ReasonWrite) {
		f.log.Infow("msg", "client write failed, stopping", "error", err)
	}
}
