package frame

import (
	"bytes"
	"io"
	"testing"

	"github.com/niclashoyer/rtltcp/xsdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rw struct {
	io.Reader
	io.Writer
}

func newTestCodec(in []byte, out *bytes.Buffer, writeBufSize int) *Codec {
	return New(rw{Reader: bytes.NewReader(in), Writer: out}, writeBufSize)
}

func TestDecodeCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        []byte
		tag       Tag
		supported bool
		check     func(t *testing.T, c Command)
	}{
		{
			name:      "center frequency 10MHz",
			in:        []byte{0x01, 0x00, 0x98, 0x96, 0x80},
			tag:       TagSetCenterFreq,
			supported: true,
			check: func(t *testing.T, c Command) {
				assert.Equal(t, uint32(10_000_000), c.Uint32())
			},
		},
		{
			name:      "sample rate 2.048MHz",
			in:        []byte{0x02, 0x00, 0x1f, 0x40, 0x00},
			tag:       TagSetSampleRate,
			supported: true,
			check: func(t *testing.T, c Command) {
				assert.Equal(t, uint32(2_048_000), c.Uint32())
			},
		},
		{
			name:      "negative ppm",
			in:        []byte{0x05, 0xff, 0xff, 0xff, 0xfb},
			tag:       TagSetFreqCorr,
			supported: true,
			check: func(t *testing.T, c Command) {
				assert.Equal(t, int32(-5), c.Int32())
			},
		},
		{
			name:      "tuner gain in tenths of dB",
			in:        []byte{0x04, 0x00, 0x00, 0x01, 0xef},
			tag:       TagSetTunerGain,
			supported: true,
			check: func(t *testing.T, c Command) {
				assert.Equal(t, int32(495), c.Int32())
			},
		},
		{
			name:      "agc on",
			in:        []byte{0x08, 0x00, 0x00, 0x00, 0x01},
			tag:       TagSetAGCMode,
			supported: true,
			check: func(t *testing.T, c Command) {
				assert.True(t, c.Enabled())
			},
		},
		{
			name:      "agc off",
			in:        []byte{0x08, 0x00, 0x00, 0x00, 0x00},
			tag:       TagSetAGCMode,
			supported: true,
			check: func(t *testing.T, c Command) {
				assert.False(t, c.Enabled())
			},
		},
		{
			name:      "agc with value other than one is off",
			in:        []byte{0x08, 0x00, 0x00, 0x00, 0x02},
			tag:       TagSetAGCMode,
			supported: true,
			check: func(t *testing.T, c Command) {
				assert.False(t, c.Enabled())
			},
		},
		{
			name:      "gain mode is not supported",
			in:        []byte{0x03, 0x00, 0x00, 0x00, 0x01},
			tag:       Tag(0x03),
			supported: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestCodec(tt.in, &bytes.Buffer{}, 0)

			cmd, err := c.DecodeCommand()
			require.NoError(t, err)
			assert.Equal(t, tt.tag, cmd.Tag)
			assert.Equal(t, tt.supported, cmd.Tag.Supported())

			if tt.check != nil {
				tt.check(t, cmd)
			}

			_, err = c.DecodeCommand()
			assert.Equal(t, io.EOF, err)
		})
	}
}

func TestDecodeCommandInOrder(t *testing.T) {
	t.Parallel()

	in := []byte{
		0x01, 0x05, 0xf5, 0xe1, 0x00,
		0x7f, 0xde, 0xad, 0xbe, 0xef,
		0x02, 0x00, 0x24, 0x9f, 0x00,
	}
	c := newTestCodec(in, &bytes.Buffer{}, 0)

	var tags []Tag

	for {
		cmd, err := c.DecodeCommand()
		if err == io.EOF {
			break
		}

		require.NoError(t, err)
		tags = append(tags, cmd.Tag)
	}

	assert.Equal(t, []Tag{TagSetCenterFreq, Tag(0x7f), TagSetSampleRate}, tags)
}

func TestDecodeCommandShortRead(t *testing.T) {
	t.Parallel()

	c := newTestCodec([]byte{0x01, 0x00, 0x98}, &bytes.Buffer{}, 0)

	_, err := c.DecodeCommand()
	assert.Equal(t, ErrShortRead, err)
}

func TestEncodeDongleInfo(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	c := newTestCodec(nil, &out, 500*1024)

	require.NoError(t, c.EncodeDongleInfo(NewDongleInfo(xsdr.TunerR820T, 0x1d)))
	assert.Equal(t, []byte{0x52, 0x54, 0x4c, 0x30, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x1d}, out.Bytes())
}

func TestDecodeDongleInfo(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		in := []byte{'R', 'T', 'L', '0', 0, 0, 0, 1, 0, 0, 0, 14}
		info, err := newTestCodec(in, &bytes.Buffer{}, 0).DecodeDongleInfo()
		require.NoError(t, err)
		assert.Equal(t, xsdr.TunerE4000, info.Tuner)
		assert.Equal(t, uint32(14), info.GainCount)
	})

	t.Run("bad magic", func(t *testing.T) {
		t.Parallel()

		in := []byte{'R', 'T', 'L', '1', 0, 0, 0, 1, 0, 0, 0, 14}
		_, err := newTestCodec(in, &bytes.Buffer{}, 0).DecodeDongleInfo()
		assert.Equal(t, ErrInvalidMagic, err)
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()

		_, err := newTestCodec([]byte{'R', 'T', 'L'}, &bytes.Buffer{}, 0).DecodeDongleInfo()
		assert.Equal(t, ErrShortRead, err)
	})
}

func TestEncodeCommand(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	c := newTestCodec(nil, &out, 0)

	require.NoError(t, c.EncodeCommand(NewCommand(TagSetCenterFreq, 10_000_000)))
	require.NoError(t, c.EncodeCommand(NewAGCCommand(true)))
	require.NoError(t, c.EncodeCommand(NewSignedCommand(TagSetFreqCorr, -5)))

	assert.Equal(t, []byte{
		0x01, 0x00, 0x98, 0x96, 0x80,
		0x08, 0x00, 0x00, 0x00, 0x01,
		0x05, 0xff, 0xff, 0xff, 0xfb,
	}, out.Bytes())
}

func TestWriteSamplesBuffersUntilFlush(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	c := newTestCodec(nil, &out, 64)

	require.NoError(t, c.WriteSamples([]byte{1, 2, 3}))
	require.NoError(t, c.WriteSamples([]byte{4, 5}))
	assert.Zero(t, out.Len())

	require.NoError(t, c.Flush())
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, out.Bytes())
}

func TestTagOperation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/rtltcp.Command/SetCenterFreq", TagSetCenterFreq.Operation())
	assert.Equal(t, "/rtltcp.Command/Unsupported", Tag(0x0d).Operation())
	assert.Equal(t, "0x0d", Tag(0x0d).String())
}
