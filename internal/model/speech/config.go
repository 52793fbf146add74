package speech

import "time"

// SpeechConfig 语音合成服务配置
type SpeechConfig struct {
	APIKey    string        `json:"-"`
	BaseURL   string        `json:"baseUrl"`
	ModelID   string        `json:"modelId"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit float64       `json:"rateLimit"` // requests per second, 0 disables limiting

	Settings VoiceSettings `json:"voiceSettings"`
}

// VoiceSettings mirrors the provider's voice_settings object.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings returns the settings the studio has always shipped with.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0,
		UseSpeakerBoost: true,
	}
}
