// Package audio loads RIFF/WAVE files into the normalised mono form the
// spectral analyzer consumes.
//
// Only integer PCM at 8, 16, or 32 bits per sample is accepted; anything
// else is rejected up front so unsupported material never reaches the
// analysis stage. Multi-channel audio is mixed down by averaging the
// channels of each frame.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrEmptyData is returned when a WAV file contains no PCM samples.
var ErrEmptyData = errors.New("audio: file contains no samples")

// ErrUnsupportedFormat is returned for WAV encodings the decoder does not
// handle: anything but integer PCM, or bit depths other than 8, 16 and 32.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// wavPCMFormat is the fmt-chunk code for plain integer PCM.
const wavPCMFormat = 1

// Clip is a decoded waveform: normalised mono samples in [-1,1] plus the
// rate they were recorded at. Channels and Bits describe the source file
// before the mixdown, for reporting.
type Clip struct {
	Samples    []float64
	SampleRate int
	Channels   int
	Bits       int
}

// Duration returns the clip length.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// LoadWAV reads and decodes the WAV file at path.
func LoadWAV(path string) (Clip, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("audio: reading %s: %w", path, err)
	}
	clip, err := DecodeWAV(raw)
	if err != nil {
		return Clip{}, fmt.Errorf("audio: decoding %s: %w", path, err)
	}
	return clip, nil
}

// DecodeWAV parses a RIFF/WAVE container and decodes its PCM payload to
// normalised mono samples.
func DecodeWAV(wav []byte) (Clip, error) {
	format, err := parseWAV(wav)
	if err != nil {
		return Clip{}, err
	}

	data := wav[format.dataOffset:]
	if format.dataSize < len(data) {
		data = data[:format.dataSize]
	}

	samples, err := decodeSamples(data, format.bitsPerSample)
	if err != nil {
		return Clip{}, err
	}
	if len(samples) == 0 {
		return Clip{}, ErrEmptyData
	}

	return Clip{
		Samples:    mixdown(samples, format.channels),
		SampleRate: format.sampleRate,
		Channels:   format.channels,
		Bits:       format.bitsPerSample,
	}, nil
}

// wavFormat holds the fields extracted from a RIFF/WAVE header.
type wavFormat struct {
	audioFormat   int
	channels      int
	sampleRate    int
	bitsPerSample int
	dataOffset    int // byte offset of the first PCM sample
	dataSize      int // declared size of the data chunk
}

// parseWAV scans the RIFF/WAVE container in wav and returns the audio format
// from the "fmt " sub-chunk together with the data chunk location. Walking
// the chunks is more robust than hardcoding a fixed 44-byte offset because
// the fmt chunk size may vary and optional chunks may precede the data.
func parseWAV(wav []byte) (wavFormat, error) {
	if len(wav) < 12 {
		return wavFormat{}, errors.New("audio: too short to be a RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return wavFormat{}, errors.New("audio: missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return wavFormat{}, errors.New("audio: missing WAVE identifier")
	}

	var format wavFormat
	foundFmt := false

	// Walk RIFF chunks starting immediately after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || offset+8+16 > len(wav) {
				return wavFormat{}, errors.New("audio: malformed fmt chunk")
			}
			fmtData := wav[offset+8:]
			format.audioFormat = int(binary.LittleEndian.Uint16(fmtData[0:2]))
			format.channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			format.sampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			format.bitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			foundFmt = true

		case "data":
			if !foundFmt {
				return wavFormat{}, errors.New("audio: data chunk precedes fmt chunk")
			}
			if err := validateFormat(format); err != nil {
				return wavFormat{}, err
			}
			format.dataOffset = offset + 8
			format.dataSize = chunkSize
			return format, nil
		}

		// Advance past this chunk (chunks are word-aligned: pad by 1 if odd size).
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavFormat{}, errors.New("audio: missing data chunk")
}

// validateFormat rejects encodings the decoder does not support.
func validateFormat(f wavFormat) error {
	if f.audioFormat != wavPCMFormat {
		return fmt.Errorf("%w: encoding %d, only integer PCM is supported", ErrUnsupportedFormat, f.audioFormat)
	}
	switch f.bitsPerSample {
	case 8, 16, 32:
	default:
		return fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, f.bitsPerSample)
	}
	if f.channels < 1 {
		return fmt.Errorf("audio: invalid channel count %d", f.channels)
	}
	if f.sampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", f.sampleRate)
	}
	return nil
}

// decodeSamples converts raw little-endian PCM to normalised float64.
// 8-bit WAV audio is unsigned with a 128 midpoint; 16- and 32-bit are
// signed two's complement. A trailing partial sample is dropped.
func decodeSamples(data []byte, bitsPerSample int) ([]float64, error) {
	switch bitsPerSample {
	case 8:
		out := make([]float64, len(data))
		for i, b := range data {
			out[i] = (float64(b) - 128.0) / 128.0
		}
		return out, nil

	case 16:
		n := len(data) / 2
		out := make([]float64, n)
		for i := range n {
			v := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
			out[i] = float64(v) / 32768.0
		}
		return out, nil

	case 32:
		n := len(data) / 4
		out := make([]float64, n)
		for i := range n {
			v := int32(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
			out[i] = float64(v) / 2147483648.0
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, bitsPerSample)
	}
}

// mixdown averages interleaved channels into mono. Trailing samples that do
// not fill a whole frame are dropped.
func mixdown(samples []float64, channels int) []float64 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}
