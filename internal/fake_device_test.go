package internal

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/niclashoyer/rtltcp/xsdr"
)

type deviceCall struct {
	op    string
	value any
}

// fakeDevice records configuration calls and plays back sample buffers.
type fakeDevice struct {
	mu    sync.Mutex
	calls []deviceCall
	fail  map[string]error

	buffers [][]byte
	// repeat keeps delivering the last buffer until the stream is cancelled.
	repeat bool
	// endStream makes ReadAsync return after the buffers instead of waiting
	// for a cancel.
	endStream bool
	readErr   error

	bufNum, bufLen int
	readStarted    chan struct{}
	cancelled      chan struct{}
	cancelOnce     sync.Once
	cancelCount    atomic.Int32
}

func newFakeDevice(buffers ...[]byte) *fakeDevice {
	return &fakeDevice{
		fail:        map[string]error{},
		buffers:     buffers,
		readStarted: make(chan struct{}),
		cancelled:   make(chan struct{}),
	}
}

func (d *fakeDevice) record(op string, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.fail[op]; ok {
		return err
	}

	d.calls = append(d.calls, deviceCall{op: op, value: value})

	return nil
}

func (d *fakeDevice) failOn(op string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fail[op] = errors.New("usb transfer error")
}

func (d *fakeDevice) recorded() []deviceCall {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]deviceCall(nil), d.calls...)
}

func (d *fakeDevice) SetCenterFreq(hz uint32) error {
	return d.record("SetCenterFreq", hz)
}

func (d *fakeDevice) SetSampleRate(hz uint32) error {
	return d.record("SetSampleRate", hz)
}

func (d *fakeDevice) SetFreqCorrection(ppm int32) error {
	return d.record("SetFreqCorrection", ppm)
}

func (d *fakeDevice) SetTunerGain(gain int32) error {
	return d.record("SetTunerGain", gain)
}

func (d *fakeDevice) SetAGCMode(on bool) error {
	return d.record("SetAGCMode", on)
}

func (d *fakeDevice) ReadAsync(f xsdr.ReadAsyncFunc, bufNum, bufLen int) error {
	d.bufNum, d.bufLen = bufNum, bufLen
	close(d.readStarted)

	for _, buf := range d.buffers {
		if d.isCancelled() {
			return nil
		}

		f(buf)
	}

	if d.readErr != nil {
		return d.readErr
	}

	if d.endStream {
		return nil
	}

	if d.repeat && len(d.buffers) > 0 {
		last := d.buffers[len(d.buffers)-1]
		for !d.isCancelled() {
			f(last)
			time.Sleep(time.Millisecond)
		}

		return nil
	}

	<-d.cancelled

	return nil
}

func (d *fakeDevice) isCancelled() bool {
	select {
	case <-d.cancelled:
		return true
	default:
		return false
	}
}

func (d *fakeDevice) CancelAsync() error {
	d.cancelCount.Add(1)
	d.cancelOnce.Do(func() {
		close(d.cancelled)
	})

	return nil
}

func (d *fakeDevice) Tuner() xsdr.Tuner {
	return xsdr.TunerR820T
}

func (d *fakeDevice) GainCount() int {
	return 29
}

func (d *fakeDevice) Close() error {
	return nil
}

type logEntry struct {
	level   log.Level
	keyvals []any
}

// recordLogger is the observability sink used to assert on log output.
type recordLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordLogger) Log(level log.Level, keyvals ...any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, logEntry{level: level, keyvals: keyvals})

	return nil
}

// find returns the level of the first entry whose "msg" equals msg.
func (l *recordLogger) find(msg string) (log.Level, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		for i := 0; i+1 < len(e.keyvals); i += 2 {
			if e.keyvals[i] == "msg" && e.keyvals[i+1] == msg {
				return e.level, true
			}
		}
	}

	return 0, false
}
