package xsdr

import "strings"

// Tuner is the tuner chip identifier sent in the rtl_tcp dongle header.
type Tuner uint32

const (
	TunerUnknown Tuner = iota
	TunerE4000
	TunerFC0012
	TunerFC0013
	TunerFC2580
	TunerR820T
	TunerR828D
)

var tunerNames = []string{"UNKNOWN", "E4000", "FC0012", "FC0013", "FC2580", "R820T", "R828D"}

func (t Tuner) String() string {
	if int(t) < len(tunerNames) {
		return tunerNames[t]
	}

	return tunerNames[TunerUnknown]
}

// ParseTuner maps a driver tuner name such as "Rafael Micro R820T" or "E4000"
// to its identifier.
func ParseTuner(name string) Tuner {
	name = strings.ToUpper(name)

	for i := len(tunerNames) - 1; i > 0; i-- {
		if strings.Contains(name, tunerNames[i]) {
			return Tuner(i)
		}
	}

	return TunerUnknown
}
