package speech

// TTSRequest 语音合成请求
type TTSRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

// SynthesisPayload is the body sent to POST /text-to-speech/{voiceId}/stream.
type SynthesisPayload struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}
