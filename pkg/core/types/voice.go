package types

// VoiceConfig configures one speech operation.
type VoiceConfig struct {
	Language string `json:"language,omitempty"` // ISO language code ("ar", "en")
	Voice    string `json:"voice,omitempty"`    // optional voice override
	Format   string `json:"format,omitempty"`   // audio format hint (wav, webm, mp3)
}

// Voice format constants
const (
	VoiceFormatMP3 = "mp3"
	VoiceFormatWAV = "wav"
	VoiceFormatPCM = "pcm"
)

// Supported languages.
const (
	LanguageArabic  = "ar"
	LanguageEnglish = "en"
)

// MimeTypeForFormat returns the audio mime type for a format hint.
func MimeTypeForFormat(format string) string {
	switch format {
	case VoiceFormatMP3:
		return "audio/mpeg"
	case VoiceFormatPCM:
		return "audio/pcm"
	case "webm":
		return "audio/webm"
	case "ogg":
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}
