package frame

import (
	"encoding/binary"
	"fmt"
)

// CommandSize is the size of a client command frame: 1 tag byte and a 4 byte
// big-endian parameter.
const CommandSize = 5

// Tag identifies a command frame.
type Tag uint8

// Tags understood by the bridge. rtl_tcp defines more; every other tag is
// read and discarded.
const (
	TagSetCenterFreq Tag = 0x01
	TagSetSampleRate Tag = 0x02
	TagSetTunerGain  Tag = 0x04
	TagSetFreqCorr   Tag = 0x05
	TagSetAGCMode    Tag = 0x08
)

const (
	operationPrefix   = "/rtltcp.Command/"
	unsupportedOpName = "Unsupported"
)

var operations = map[Tag]string{
	TagSetCenterFreq: "SetCenterFreq",
	TagSetSampleRate: "SetSampleRate",
	TagSetTunerGain:  "SetTunerGain",
	TagSetFreqCorr:   "SetFreqCorrection",
	TagSetAGCMode:    "SetAGCMode",
}

// Supported reports whether the bridge applies frames with this tag.
func (t Tag) Supported() bool {
	_, ok := operations[t]
	return ok
}

// Operation returns the operation name used in logs, metrics and the kratos
// transport, e.g. "/rtltcp.Command/SetCenterFreq".
func (t Tag) Operation() string {
	if op, ok := operations[t]; ok {
		return operationPrefix + op
	}

	return operationPrefix + unsupportedOpName
}

func (t Tag) String() string {
	if op, ok := operations[t]; ok {
		return op
	}

	return fmt.Sprintf("0x%02x", uint8(t))
}

// Command is one decoded command frame.
type Command struct {
	Tag   Tag
	Param [4]byte
}

// NewCommand builds a frame from a tag and an unsigned parameter.
func NewCommand(tag Tag, param uint32) Command {
	c := Command{Tag: tag}
	binary.BigEndian.PutUint32(c.Param[:], param)

	return c
}

// NewSignedCommand builds a frame from a tag and a signed parameter.
func NewSignedCommand(tag Tag, param int32) Command {
	return NewCommand(tag, uint32(param))
}

// NewAGCCommand builds a set-AGC frame.
func NewAGCCommand(on bool) Command {
	if on {
		return NewCommand(TagSetAGCMode, 1)
	}

	return NewCommand(TagSetAGCMode, 0)
}

// Uint32 returns the parameter as an unsigned big-endian value.
func (c Command) Uint32() uint32 {
	return binary.BigEndian.Uint32(c.Param[:])
}

// Int32 returns the parameter as a signed big-endian value.
func (c Command) Int32() int32 {
	return int32(c.Uint32())
}

// Enabled returns true only for a parameter of exactly 1.
func (c Command) Enabled() bool {
	return c.Uint32() == 1
}

// Value returns the parameter typed the way the device call takes it.
func (c Command) Value() any {
	switch c.Tag {
	case TagSetTunerGain, TagSetFreqCorr:
		return c.Int32()
	case TagSetAGCMode:
		return c.Enabled()
	default:
		return c.Uint32()
	}
}

// Bytes returns the wire form of the frame.
func (c Command) Bytes() [CommandSize]byte {
	var b [CommandSize]byte

	b[0] = byte(c.Tag)
	copy(b[1:], c.Param[:])

	return b
}

func (c Command) String() string {
	return fmt.Sprintf("%s(% x)", c.Tag, c.Param)
}
