package live

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
)

// CalculateRMSEnergy computes the root-mean-square energy of PCM audio.
// Input is assumed to be 16-bit signed little-endian PCM.
// Returns a value between 0.0 and 1.0.
func CalculateRMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i:]))
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(samples))
}

// AudioBuffer accumulates PCM for the active recording, keeping at most
// maxBytes of the most recent audio.
type AudioBuffer struct {
	mu       sync.Mutex
	data     []byte
	maxBytes int
	config   AudioConfig
}

// NewAudioBuffer creates a buffer that holds up to maxDurationMs of audio.
func NewAudioBuffer(config AudioConfig, maxDurationMs int) *AudioBuffer {
	return &AudioBuffer{
		data:     make([]byte, 0, config.BytesForDurationMs(min(maxDurationMs, 5000))),
		maxBytes: config.BytesForDurationMs(maxDurationMs),
		config:   config,
	}
}

// Write appends audio data, discarding the oldest bytes past the cap.
func (b *AudioBuffer) Write(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, data...)
	if len(b.data) > b.maxBytes {
		excess := len(b.data) - b.maxBytes
		// Keep sample alignment.
		excess += excess % 2
		b.data = b.data[excess:]
	}
}

// Take returns the buffered audio and empties the buffer.
func (b *AudioBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, len(b.data))
	copy(out, b.data)
	b.data = b.data[:0]
	return out
}

// Len returns the current buffer size in bytes.
func (b *AudioBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// DurationMs returns the current buffer duration in milliseconds.
func (b *AudioBuffer) DurationMs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config.DurationMs(len(b.data))
}

// Clear empties the buffer.
func (b *AudioBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
}

// RingBuffer is a fixed-size circular buffer holding the most recent audio.
// The monitor reads its level from here, the way an analyser node exposes
// its latest time-domain window.
type RingBuffer struct {
	mu       sync.Mutex
	data     []byte
	size     int
	writePos int
	filled   int
}

// NewRingBuffer creates a ring buffer that holds exactly durationMs of audio.
func NewRingBuffer(config AudioConfig, durationMs int) *RingBuffer {
	size := config.BytesForDurationMs(durationMs)
	if size < 2 {
		size = 2
	}
	return &RingBuffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write adds data to the ring buffer, overwriting old data if necessary.
func (r *RingBuffer) Write(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(data) >= r.size {
		copy(r.data, data[len(data)-r.size:])
		r.writePos = 0
		r.filled = r.size
		return
	}
	for _, b := range data {
		r.data[r.writePos] = b
		r.writePos = (r.writePos + 1) % r.size
		if r.filled < r.size {
			r.filled++
		}
	}
}

// Read returns all data in the buffer in chronological order.
func (r *RingBuffer) Read() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.filled < r.size {
		result := make([]byte, r.filled)
		copy(result, r.data[:r.filled])
		return result
	}

	result := make([]byte, r.size)
	firstPart := r.size - r.writePos
	copy(result[:firstPart], r.data[r.writePos:])
	copy(result[firstPart:], r.data[:r.writePos])
	return result
}

// Level returns the RMS energy of the buffered window.
func (r *RingBuffer) Level() float64 {
	return CalculateRMSEnergy(r.Read())
}

// Clear resets the ring buffer.
func (r *RingBuffer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writePos = 0
	r.filled = 0
}

// EncodeWAV wraps PCM16 samples in a canonical 44-byte RIFF header.
func EncodeWAV(pcm []byte, cfg AudioConfig) []byte {
	out := make([]byte, 44+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1)
	binary.LittleEndian.PutUint16(out[22:24], uint16(cfg.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(cfg.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(cfg.BytesPerSecond()))
	binary.LittleEndian.PutUint16(out[32:34], uint16(cfg.Channels*cfg.BitsPerSample/8))
	binary.LittleEndian.PutUint16(out[34:36], uint16(cfg.BitsPerSample))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)
	return out
}

// ErrNotWAV is returned by DecodeWAV for anything but 16-bit PCM RIFF data.
var ErrNotWAV = errors.New("live: not a PCM16 wav clip")

// DecodeWAV returns the PCM payload and format of a RIFF/WAVE clip. Chunks
// other than "fmt " and "data" are skipped.
func DecodeWAV(data []byte) ([]byte, AudioConfig, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, AudioConfig{}, ErrNotWAV
	}
	var cfg AudioConfig
	haveFmt := false
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if size < 0 || end > len(data) {
			// Streaming encoders leave the data size at 0 or 0xFFFFFFFF.
			end = len(data)
		}
		switch id {
		case "fmt ":
			if end-body < 16 || binary.LittleEndian.Uint16(data[body:body+2]) != 1 {
				return nil, AudioConfig{}, ErrNotWAV
			}
			cfg.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			cfg.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			cfg.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			if !haveFmt || cfg.BitsPerSample != 16 {
				return nil, AudioConfig{}, ErrNotWAV
			}
			if size == 0 {
				end = len(data)
			}
			return data[body:end], cfg, nil
		}
		off = end + end%2
	}
	return nil, AudioConfig{}, ErrNotWAV
}

// ResampleMono converts PCM16 in format from to mono at rate, averaging
// channels and interpolating linearly between samples.
func ResampleMono(pcm []byte, from AudioConfig, rate int) []byte {
	channels := max(from.Channels, 1)
	frames := len(pcm) / (2 * channels)
	if frames == 0 || rate <= 0 || from.SampleRate <= 0 {
		return nil
	}

	mono := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			off := (i*channels + c) * 2
			sum += float64(int16(binary.LittleEndian.Uint16(pcm[off : off+2])))
		}
		mono[i] = sum / float64(channels)
	}

	if from.SampleRate == rate {
		out := make([]byte, frames*2)
		for i, s := range mono {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
		}
		return out
	}

	n := int(int64(frames) * int64(rate) / int64(from.SampleRate))
	out := make([]byte, n*2)
	step := float64(from.SampleRate) / float64(rate)
	for i := range n {
		pos := float64(i) * step
		j := int(pos)
		frac := pos - float64(j)
		s := mono[min(j, frames-1)]
		if j+1 < frames {
			s += (mono[j+1] - s) * frac
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}
