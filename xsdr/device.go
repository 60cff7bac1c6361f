// Package xsdr defines the tuner surface driven by the rtl_tcp bridge.
package xsdr

// ReadAsyncFunc receives one filled sample buffer. The buffer is only valid
// for the duration of the call.
type ReadAsyncFunc func(buf []byte)

// Device is an opened tuner. Configuration calls are synchronous; ReadAsync
// blocks the caller and invokes f with every filled buffer until CancelAsync
// is called from another goroutine.
type Device interface {
	SetCenterFreq(hz uint32) error
	SetSampleRate(hz uint32) error
	SetFreqCorrection(ppm int32) error
	SetTunerGain(gain int32) error
	SetAGCMode(on bool) error

	ReadAsync(f ReadAsyncFunc, bufNum, bufLen int) error
	CancelAsync() error

	// Tuner returns TunerUnknown when the driver cannot tell.
	Tuner() Tuner
	// GainCount returns the number of discrete gain steps, 0 when unknown.
	GainCount() int

	Close() error
}

// Opener opens the device at index.
type Opener func(index int) (Device, error)
