// Package dummy is a synthetic receiver producing a single tone, for
// running the server without radio hardware.
package dummy

import (
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/niclashoyer/rtltcp/xsdr"
)

const (
	// DefaultBufLen matches librtlsdr's default transfer size.
	DefaultBufLen = 16 * 32 * 512

	defaultSampleRate = 2_048_000
	defaultToneOffset = 100_000
	amplitude         = 100.0
	gainSteps         = 29

	minFreq = 24_000_000
	maxFreq = 1_766_000_000
)

var (
	ErrClosed         = errors.New("device closed")
	ErrStreaming      = errors.New("device already streaming")
	ErrFreqRange      = errors.New("center frequency out of tuner range")
	ErrSampleRate     = errors.New("invalid sample rate")
	ErrNoDevice       = errors.New("no such device")
	ErrBufferLenRange = errors.New("buffer length must be a multiple of 512")
)

// Settings is what the device was last told.
type Settings struct {
	CenterFreq uint32
	SampleRate uint32
	PPM        int32
	Gain       int32
	AGC        bool
}

type Option func(d *Device)

// ToneOffset places the generated tone offset hz from the center.
func ToneOffset(hz float64) Option {
	return func(d *Device) {
		d.toneOffset = hz
	}
}

// Unpaced delivers buffers as fast as the callback takes them instead of
// at the configured sample rate.
func Unpaced() Option {
	return func(d *Device) {
		d.paced = false
	}
}

// Count sets how many devices the opener pretends to find.
func Count(n int) Option {
	return func(d *Device) {
		d.count = n
	}
}

var _ xsdr.Device = (*Device)(nil)

type Device struct {
	mu       sync.Mutex
	settings Settings
	closed   bool

	toneOffset float64
	paced      bool
	count      int
	phase      float64

	streaming atomic.Bool
	cancelled atomic.Bool
}

func New(opts ...Option) *Device {
	d := &Device{
		settings: Settings{
			SampleRate: defaultSampleRate,
			AGC:        true,
		},
		toneOffset: defaultToneOffset,
		paced:      true,
		count:      1,
	}

	for _, o := range opts {
		o(d)
	}

	return d
}

// Opener returns an xsdr.Opener handing out a fresh device per call.
func Opener(opts ...Option) xsdr.Opener {
	return func(index int) (xsdr.Device, error) {
		d := New(opts...)
		if index < 0 || index >= d.count {
			return nil, errors.Wrapf(ErrNoDevice, "index=%d", index)
		}

		return d, nil
	}
}

func (d *Device) Settings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.settings
}

func (d *Device) update(f func(s *Settings) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	return f(&d.settings)
}

func (d *Device) SetCenterFreq(hz uint32) error {
	return d.update(func(s *Settings) error {
		if hz < minFreq || hz > maxFreq {
			return errors.Wrapf(ErrFreqRange, "freq=%d", hz)
		}

		s.CenterFreq = hz

		return nil
	})
}

// SetSampleRate accepts the same ranges as the RTL2832U.
func (d *Device) SetSampleRate(hz uint32) error {
	return d.update(func(s *Settings) error {
		if (hz <= 225_000) || (hz > 300_000 && hz <= 900_000) || hz > 3_200_000 {
			return errors.Wrapf(ErrSampleRate, "rate=%d", hz)
		}

		s.SampleRate = hz

		return nil
	})
}

func (d *Device) SetFreqCorrection(ppm int32) error {
	return d.update(func(s *Settings) error {
		s.PPM = ppm
		return nil
	})
}

func (d *Device) SetTunerGain(gain int32) error {
	return d.update(func(s *Settings) error {
		s.Gain = gain
		s.AGC = false

		return nil
	})
}

func (d *Device) SetAGCMode(on bool) error {
	return d.update(func(s *Settings) error {
		s.AGC = on
		return nil
	})
}

// ReadAsync calls f with bufLen bytes of 8-bit offset-binary I/Q until
// CancelAsync is called. bufNum is accepted for interface compatibility.
func (d *Device) ReadAsync(f xsdr.ReadAsyncFunc, bufNum, bufLen int) error {
	if bufLen == 0 {
		bufLen = DefaultBufLen
	}

	if bufLen < 0 || bufLen%512 != 0 {
		return errors.Wrapf(ErrBufferLenRange, "len=%d", bufLen)
	}

	if bufNum <= 0 {
		bufNum = 1
	}

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()

	if closed {
		return ErrClosed
	}

	if !d.streaming.CompareAndSwap(false, true) {
		return ErrStreaming
	}
	defer d.streaming.Store(false)

	ring := make([][]byte, bufNum)
	for i := range ring {
		ring[i] = make([]byte, bufLen)
	}

	next := time.Now()

	for i := 0; !d.cancelled.Load(); i++ {
		buf := ring[i%bufNum]
		rate := d.fill(buf)

		f(buf)

		if !d.paced {
			continue
		}

		next = next.Add(time.Duration(float64(len(buf)/2) / float64(rate) * float64(time.Second)))
		if wait := time.Until(next); wait > 0 {
			time.Sleep(wait)
		}
	}

	return nil
}

// fill writes one buffer of samples and returns the sample rate used.
func (d *Device) fill(buf []byte) uint32 {
	rate := d.Settings().SampleRate
	step := 2 * math.Pi * d.toneOffset / float64(rate)

	for i := 0; i+1 < len(buf); i += 2 {
		dither := rand.Float64() - 0.5

		buf[i] = quantize(amplitude*math.Cos(d.phase) + dither)
		buf[i+1] = quantize(amplitude*math.Sin(d.phase) + dither)

		d.phase += step
		if d.phase > 2*math.Pi {
			d.phase -= 2 * math.Pi
		}
	}

	return rate
}

func quantize(v float64) byte {
	v += 127.5
	if v < 0 {
		return 0
	}

	if v > 255 {
		return 255
	}

	return byte(v)
}

// CancelAsync stops a running ReadAsync. A cancel issued before ReadAsync
// starts makes it return immediately.
func (d *Device) CancelAsync() error {
	d.cancelled.Store(true)
	return nil
}

func (d *Device) Tuner() xsdr.Tuner {
	return xsdr.TunerR820T
}

func (d *Device) GainCount() int {
	return gainSteps
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	d.closed = true

	return nil
}
