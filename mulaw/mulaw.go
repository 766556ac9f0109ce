// Package mulaw implements the ITU-T G.711 mu-law compander used by the
// telephony media stream, plus canonical PCM WAV framing. All functions
// are pure and operate on 8 kHz mono audio; there is no I/O in this
// package.
package mulaw

import "encoding/binary"

const (
	bias = 0x84
	clip = 32635
)

// segmentEnd holds the upper bound of each of the 8 mu-law exponent
// segments, used by the leading-bit scan in EncodeSample.
var segmentEnd = [8]int32{0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF, 0x1FFF, 0x3FFF, 0x7FFF}

// EncodeSample encodes a single linear 16-bit PCM sample to one mu-law
// byte using the standard segmented compander.
func EncodeSample(sample int16) byte {
	var sign byte
	s := int32(sample)
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > clip {
		s = clip
	}
	s += bias

	exponent := byte(7)
	for i, end := range segmentEnd {
		if s <= end {
			exponent = byte(i)
			break
		}
	}

	mantissa := byte((s >> (uint(exponent) + 3)) & 0x0F)
	encoded := sign | (exponent << 4) | mantissa
	return ^encoded
}

// DecodeSample decodes one mu-law byte back to a linear 16-bit PCM
// sample. Sign, exponent and mantissa are recovered from the
// one's-complemented byte; the magnitude is reconstructed at the
// midpoint of its quantization step, BIAS-adjusted, and negated when
// the sign bit is set.
func DecodeSample(mu byte) int16 {
	mu = ^mu
	sign := mu & 0x80
	exponent := uint(mu>>4) & 0x07
	mantissa := int32(mu & 0x0F)

	magnitude := ((mantissa << 3) + bias) << exponent
	sample := magnitude - bias
	if sign != 0 {
		sample = bias - magnitude
	}

	if sample > 32767 {
		sample = 32767
	}
	if sample < -32768 {
		sample = -32768
	}
	return int16(sample)
}

// EncodePCM16ToMulaw converts little-endian signed 16-bit PCM samples to
// one mu-law byte per sample. A trailing odd byte is truncated.
func EncodePCM16ToMulaw(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		out[i] = EncodeSample(sample)
	}
	return out
}

// DecodeMulawToPCM16 converts mu-law bytes back to little-endian signed
// 16-bit PCM.
func DecodeMulawToPCM16(mu []byte) []byte {
	out := make([]byte, len(mu)*2)
	for i, b := range mu {
		sample := DecodeSample(b)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(sample))
	}
	return out
}

const wavHeaderSize = 44

// WrapPCM16AsWAV prepends a 44-byte canonical PCM WAV header to linear
// 16-bit PCM samples. sampleRate defaults to 8000 when zero.
func WrapPCM16AsWAV(pcm []byte, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = 8000
	}
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[wavHeaderSize:], pcm)

	return buf
}
