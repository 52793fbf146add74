package speech

import "time"

// AudioResource 合成后的音频，调用方只负责播放或下载，不做解码
type AudioResource struct {
	Data        []byte    `json:"-"`
	ContentType string    `json:"contentType"`
	Filename    string    `json:"filename"`
	Size        int       `json:"size"`
	VoiceID     string    `json:"voiceId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Voice 语音提供方返回的可选声音
type Voice struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Language    string `json:"language"`
	Description string `json:"description,omitempty"`
}

// Label is what a voice selector shows for this voice.
func (v Voice) Label() string {
	return v.DisplayName + " (" + v.Language + ")"
}
