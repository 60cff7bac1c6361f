package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/niclashoyer/rtltcp/xsdr"
)

// DongleInfoSize is the size of the header sent once at connection start.
const DongleInfoSize = 12

// Defaults used when the device cannot describe itself.
const (
	DefaultTuner     = xsdr.TunerR820T
	DefaultGainCount = 29
)

// Magic is the tag opening every rtl_tcp stream.
var Magic = [4]byte{'R', 'T', 'L', '0'}

// DongleInfo is the handshake header: magic, tuner type and gain step count,
// all big-endian.
type DongleInfo struct {
	Magic     [4]byte
	Tuner     xsdr.Tuner
	GainCount uint32
}

// NewDongleInfo builds a header with the rtl_tcp magic.
func NewDongleInfo(tuner xsdr.Tuner, gainCount uint32) DongleInfo {
	return DongleInfo{
		Magic:     Magic,
		Tuner:     tuner,
		GainCount: gainCount,
	}
}

// Valid reports whether the magic matches "RTL0".
func (d DongleInfo) Valid() bool {
	return d.Magic == Magic
}

// Bytes returns the wire form of the header.
func (d DongleInfo) Bytes() [DongleInfoSize]byte {
	var b [DongleInfoSize]byte

	copy(b[:4], d.Magic[:])
	binary.BigEndian.PutUint32(b[4:8], uint32(d.Tuner))
	binary.BigEndian.PutUint32(b[8:12], d.GainCount)

	return b
}

func (d DongleInfo) String() string {
	return fmt.Sprintf("{Magic:%q Tuner:%s GainCount:%d}", d.Magic[:], d.Tuner, d.GainCount)
}

func parseDongleInfo(b [DongleInfoSize]byte) DongleInfo {
	var d DongleInfo

	copy(d.Magic[:], b[:4])
	d.Tuner = xsdr.Tuner(binary.BigEndian.Uint32(b[4:8]))
	d.GainCount = binary.BigEndian.Uint32(b[8:12])

	return d
}
