package speech

import (
	"context"

	"github.com/zhouzirui/affirmation-studio/backend/internal/model/speech"
)

// Service 语音服务核心业务逻辑
type Service struct {
	ttsClient *ElevenLabsClient
	catalog   *VoiceCatalog
}

// NewService 创建语音服务实例
func NewService(config *speech.SpeechConfig) *Service {
	return &Service{
		ttsClient: NewElevenLabsClient(config),
		catalog:   NewVoiceCatalog(),
	}
}

// LoadVoices 在启动时拉取一次声音列表
func (s *Service) LoadVoices(ctx context.Context) error {
	return s.catalog.Load(ctx, s.ttsClient)
}

// Catalog 返回启动时加载的声音目录
func (s *Service) Catalog() *VoiceCatalog {
	return s.catalog
}

// ListVoices 直接向提供方查询声音列表
func (s *Service) ListVoices(ctx context.Context) ([]speech.Voice, error) {
	return s.ttsClient.ListVoices(ctx)
}

// Synthesize 文字转语音
func (s *Service) Synthesize(ctx context.Context, text, voiceID string) (*speech.AudioResource, error) {
	return s.ttsClient.Synthesize(ctx, &speech.TTSRequest{Text: text, VoiceID: voiceID})
}
