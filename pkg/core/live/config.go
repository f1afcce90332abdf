package live

import "time"

// AudioConfig specifies audio format parameters.
type AudioConfig struct {
	// SampleRate in Hz. Common values: 16000, 24000, 44100, 48000.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int `json:"bits_per_sample"`
}

// DefaultAudioConfig returns 16kHz mono PCM16, which every recognizer accepts.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c AudioConfig) DurationMs(bytes int) int {
	if c.BytesPerSecond() == 0 {
		return 0
	}
	return (bytes * 1000) / c.BytesPerSecond()
}

// BytesForDurationMs returns the byte count for the given duration in milliseconds.
func (c AudioConfig) BytesForDurationMs(ms int) int {
	return (c.BytesPerSecond() * ms) / 1000
}

// MonitorConfig tunes speech segmentation.
type MonitorConfig struct {
	// Threshold is the RMS level (0..1) that counts as voice.
	Threshold float64 `json:"threshold"`

	// SpeechHold is how long the level must stay above Threshold before a
	// recording starts. Shorter bursts are treated as noise.
	SpeechHold time.Duration `json:"speech_hold"`

	// TrailingSilence ends a recording once the level stays below Threshold
	// this long.
	TrailingSilence time.Duration `json:"trailing_silence"`

	// MinChunkBytes drops finalized chunks smaller than this (WAV bytes).
	MinChunkBytes int `json:"min_chunk_bytes"`

	// MaxChunk caps a single recording; older audio is discarded past it.
	MaxChunk time.Duration `json:"max_chunk"`

	// AnalysisWindow is the span of most recent audio the level is computed over.
	AnalysisWindow time.Duration `json:"analysis_window"`

	// TickInterval is the polling period. 16ms approximates a display frame.
	TickInterval time.Duration `json:"tick_interval"`
}

// DefaultMonitorConfig returns the tuned defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Threshold:       0.02,
		SpeechHold:      150 * time.Millisecond,
		TrailingSilence: 620 * time.Millisecond,
		MinChunkBytes:   6000,
		MaxChunk:        30 * time.Second,
		AnalysisWindow:  64 * time.Millisecond,
		TickInterval:    16 * time.Millisecond,
	}
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	d := DefaultMonitorConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.SpeechHold <= 0 {
		c.SpeechHold = d.SpeechHold
	}
	if c.TrailingSilence <= 0 {
		c.TrailingSilence = d.TrailingSilence
	}
	if c.MinChunkBytes <= 0 {
		c.MinChunkBytes = d.MinChunkBytes
	}
	if c.MaxChunk <= 0 {
		c.MaxChunk = d.MaxChunk
	}
	if c.AnalysisWindow <= 0 {
		c.AnalysisWindow = d.AnalysisWindow
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	return c
}
