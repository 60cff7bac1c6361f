package internal

import (
	"sync"
	"sync/atomic"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/niclashoyer/rtltcp/rtltcp/frame"
	"github.com/niclashoyer/rtltcp/xsdr"
)

var (
	// ErrSessionStopping is returned for configuration calls issued after
	// shutdown was requested. They never reach the device.
	ErrSessionStopping = errors.New("session is stopping")
	// ErrDeviceRejected wraps a configuration call the device failed.
	ErrDeviceRejected = errors.New("device rejected command")
	ErrUnsupported    = errors.New("unsupported command")
)

// guardedDevice serialises configuration calls on a device shared by the
// dispatcher and the shutdown coordinator. The exit flag is only set under
// the lock and never cleared.
type guardedDevice struct {
	mu       sync.Mutex
	dev      xsdr.Device
	exit     atomic.Bool
	shutdown *Shutdown
}

func newGuardedDevice(dev xsdr.Device, shutdown *Shutdown) *guardedDevice {
	return &guardedDevice{
		dev:      dev,
		shutdown: shutdown,
	}
}

// apply issues the device call for cmd. It returns ErrSessionStopping
// without touching the device once shutdown was requested.
func (g *guardedDevice) apply(cmd frame.Command) error {
	if !cmd.Tag.Supported() {
		return ErrUnsupported
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.exit.Load() || g.shutdown.Requested() {
		return ErrSessionStopping
	}

	var err error

	switch cmd.Tag {
	case frame.TagSetCenterFreq:
		err = g.dev.SetCenterFreq(cmd.Uint32())
	case frame.TagSetSampleRate:
		err = g.dev.SetSampleRate(cmd.Uint32())
	case frame.TagSetTunerGain:
		err = g.dev.SetTunerGain(cmd.Int32())
	case frame.TagSetFreqCorr:
		err = g.dev.SetFreqCorrection(cmd.Int32())
	case frame.TagSetAGCMode:
		err = g.dev.SetAGCMode(cmd.Enabled())
	}

	if err != nil {
		return errors.Join(ErrDeviceRejected, errors.Wrapf(err, "%s", cmd))
	}

	return nil
}

func (g *guardedDevice) markExit() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exit.Store(true)
}

func (g *guardedDevice) exited() bool {
	return g.exit.Load()
}

func (g *guardedDevice) readAsync(f xsdr.ReadAsyncFunc, bufNum, bufLen int) error {
	return g.dev.ReadAsync(f, bufNum, bufLen)
}

func (g *guardedDevice) cancelAsync() error {
	return g.dev.CancelAsync()
}
