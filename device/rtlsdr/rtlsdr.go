// Package rtlsdr drives RTL2832U dongles through librtlsdr.
package rtlsdr

import (
	"sync"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	rtl "github.com/jpoirier/gortlsdr"
	"github.com/niclashoyer/rtltcp/xsdr"
)

var ErrNoDevice = errors.New("no rtl-sdr device found")

var (
	_ xsdr.Device = (*Device)(nil)
	_ xsdr.Opener = Open
)

type Device struct {
	dev   *rtl.Context
	tuner xsdr.Tuner
	gains int

	// librtlsdr rejects a correction equal to the current one.
	ppmMu sync.Mutex
	ppm   int32

	cancelled atomic.Bool
}

// Open opens the dongle at index and resets its sample buffer.
func Open(index int) (xsdr.Device, error) {
	count := rtl.GetDeviceCount()
	if count == 0 {
		return nil, ErrNoDevice
	}

	if index < 0 || index >= count {
		return nil, errors.Wrapf(ErrNoDevice, "index=%d count=%d", index, count)
	}

	dev, err := rtl.Open(index)
	if err != nil {
		return nil, errors.Wrapf(err, "open rtl-sdr failed. index=%d", index)
	}

	d := &Device{
		dev:   dev,
		tuner: xsdr.ParseTuner(dev.GetTunerType()),
	}

	if gains, err := dev.GetTunerGains(); err == nil {
		d.gains = len(gains)
	} else {
		log.Debugf("[rtlsdr.Device] read tuner gains failed. %+v", err)
	}

	if err := dev.ResetBuffer(); err != nil {
		return nil, errors.Join(errors.Wrapf(err, "reset buffer failed"), dev.Close())
	}

	log.Infof("[rtlsdr.Device] opened %s. index=%d tuner=%s gains=%d",
		rtl.GetDeviceName(index), index, d.tuner, d.gains)

	return d, nil
}

func (d *Device) SetCenterFreq(hz uint32) error {
	return d.dev.SetCenterFreq(int(hz))
}

func (d *Device) SetSampleRate(hz uint32) error {
	return d.dev.SetSampleRate(int(hz))
}

func (d *Device) SetFreqCorrection(ppm int32) error {
	d.ppmMu.Lock()
	defer d.ppmMu.Unlock()

	if ppm == d.ppm {
		return nil
	}

	if err := d.dev.SetFreqCorrection(int(ppm)); err != nil {
		return err
	}

	d.ppm = ppm

	return nil
}

// SetTunerGain switches the tuner to manual gain and sets gain, in tenths
// of a dB.
func (d *Device) SetTunerGain(gain int32) error {
	if err := d.dev.SetTunerGainMode(true); err != nil {
		return errors.Wrapf(err, "set manual gain mode failed")
	}

	return d.dev.SetTunerGain(int(gain))
}

// SetAGCMode toggles automatic gain on the tuner and in the RTL2832.
func (d *Device) SetAGCMode(on bool) error {
	if err := d.dev.SetTunerGainMode(!on); err != nil {
		return errors.Wrapf(err, "set tuner gain mode failed")
	}

	return d.dev.SetAgcMode(on)
}

func (d *Device) ReadAsync(f xsdr.ReadAsyncFunc, bufNum, bufLen int) error {
	if d.cancelled.Load() {
		return nil
	}

	return d.dev.ReadAsync(func(buf []byte) {
		// a cancel that landed before librtlsdr started its loop is lost
		if d.cancelled.Load() {
			if err := d.dev.CancelAsync(); err != nil {
				log.Debugf("[rtlsdr.Device] cancel failed. %+v", err)
			}

			return
		}

		f(buf)
	}, nil, bufNum, bufLen)
}

func (d *Device) CancelAsync() error {
	d.cancelled.Store(true)
	return d.dev.CancelAsync()
}

func (d *Device) Tuner() xsdr.Tuner {
	return d.tuner
}

func (d *Device) GainCount() int {
	return d.gains
}

func (d *Device) Close() error {
	return d.dev.Close()
}
