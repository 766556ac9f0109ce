package mulaw_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/callbridge/mulaw"
)

func pcm16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(s))
	}
	return buf
}

func TestRoundTripWithinQuantizationStep(t *testing.T) {
	for sample := int32(-8000); sample <= 8000; sample += 37 {
		encoded := mulaw.EncodeSample(int16(sample))
		decoded := mulaw.DecodeSample(encoded)
		diff := int32(decoded) - sample
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqualf(t, diff, int32(128), "sample=%d decoded=%d", sample, decoded)
	}
}

func TestRoundTripClipsToFullRange(t *testing.T) {
	for _, sample := range []int16{-32635, -1, 0, 1, 32635} {
		decoded := mulaw.DecodeSample(mulaw.EncodeSample(sample))
		assert.InDelta(t, sample, decoded, 600)
	}
}

func TestEncodePCM16ToMulawTruncatesOddTrailingByte(t *testing.T) {
	pcm := append(pcm16(0, 1000), 0x7F) // one dangling byte
	out := mulaw.EncodePCM16ToMulaw(pcm)
	require.Len(t, out, 2)
}

func TestEncodePCM16ToMulawEmptyIsValid(t *testing.T) {
	out := mulaw.EncodePCM16ToMulaw(nil)
	assert.Empty(t, out)
}

func TestDecodeMulawToPCM16Length(t *testing.T) {
	mu := []byte{0xFF, 0x00, 0x7F}
	out := mulaw.DecodeMulawToPCM16(mu)
	assert.Len(t, out, 6)
}

func TestWrapPCM16AsWAVHeader(t *testing.T) {
	pcm := pcm16(100, -100, 5000)
	wav := mulaw.WrapPCM16AsWAV(pcm, 8000)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(wav[16:20]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	assert.Equal(t, uint32(8000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[28:32]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestWrapPCM16AsWAVEmptyIsHeaderOnly(t *testing.T) {
	wav := mulaw.WrapPCM16AsWAV(nil, 8000)
	assert.Len(t, wav, 44)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestWrapPCM16AsWAVDefaultsSampleRate(t *testing.T) {
	wav := mulaw.WrapPCM16AsWAV(nil, 0)
	assert.Equal(t, uint32(8000), binary.LittleEndian.Uint32(wav[24:28]))
}
