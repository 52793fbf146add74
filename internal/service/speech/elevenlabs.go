package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/zhouzirui/affirmation-studio/backend/internal/logging"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/speech"
)

const (
	defaultContentType = "audio/mpeg"
	maxErrorBody       = 2 << 10
	maxErrorParse      = 64 << 10
)

// ElevenLabsClient ElevenLabs 兼容的 HTTP 语音合成客户端
type ElevenLabsClient struct {
	config     *speech.SpeechConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewElevenLabsClient 创建语音合成客户端，未配置声音参数时使用默认值
func NewElevenLabsClient(config *speech.SpeechConfig) *ElevenLabsClient {
	if config.Settings == (speech.VoiceSettings{}) {
		withDefaults := *config
		withDefaults.Settings = speech.DefaultVoiceSettings()
		config = &withDefaults
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &ElevenLabsClient{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type voicesResponse struct {
	Voices []voiceDescriptor `json:"voices"`
}

type voiceDescriptor struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Labels      struct {
		Language string `json:"language"`
	} `json:"labels"`
}

// ListVoices 拉取可用声音列表。提供方返回零个声音时返回空切片而不是错误。
func (c *ElevenLabsClient) ListVoices(ctx context.Context) ([]speech.Voice, error) {
	const op = "list voices"

	req, err := c.newRequest(ctx, http.MethodGet, "/voices", nil)
	if err != nil {
		return nil, apperr.UpstreamFailure(op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, apperr.UpstreamFailure(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamStatusError(op, resp)
	}

	var payload voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperr.UpstreamFailure(op, fmt.Errorf("decode voices: %w", err))
	}

	voices := make([]speech.Voice, 0, len(payload.Voices))
	for _, v := range payload.Voices {
		id := strings.TrimSpace(v.VoiceID)
		if id == "" {
			continue
		}
		language := strings.TrimSpace(v.Labels.Language)
		if language == "" {
			language = "Unknown"
		}
		name := strings.TrimSpace(v.Name)
		if name == "" {
			name = id
		}
		voices = append(voices, speech.Voice{
			ID:          id,
			DisplayName: name,
			Language:    language,
			Description: strings.TrimSpace(v.Description),
		})
	}
	return voices, nil
}

// Synthesize 合成整段文本并原样返回音频数据
func (c *ElevenLabsClient) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.AudioResource, error) {
	const op = "synthesize speech"

	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, apperr.Invalid(op, "text is required")
	}
	voiceID := strings.TrimSpace(req.VoiceID)
	if voiceID == "" {
		return nil, apperr.Invalid(op, "select a voice first")
	}

	body, err := json.Marshal(speech.SynthesisPayload{
		Text:          req.Text,
		ModelID:       c.config.ModelID,
		VoiceSettings: c.config.Settings,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/text-to-speech/"+url.PathEscape(voiceID)+"/stream", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.UpstreamFailure(op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", defaultContentType)

	started := time.Now()
	resp, err := c.do(httpReq)
	if err != nil {
		return nil, apperr.UpstreamFailure(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamStatusError(op, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.UpstreamFailure(op, fmt.Errorf("read audio: %w", err))
	}
	if len(data) == 0 {
		return nil, apperr.New(apperr.Upstream, op, "provider returned an empty audio payload")
	}

	contentType := audioContentType(resp.Header.Get("Content-Type"))
	logging.FromContext(ctx).WithPrefix("tts").Info("synthesized audio",
		"voice", voiceID,
		"chars", len(req.Text),
		"size", humanize.Bytes(uint64(len(data))),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	return &speech.AudioResource{
		Data:        data,
		ContentType: contentType,
		Filename:    TrackFilename(contentType),
		Size:        len(data),
		VoiceID:     voiceID,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (c *ElevenLabsClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.config.BaseURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.config.APIKey)
	return req, nil
}

// do issues a single attempt; failures are never retried here.
func (c *ElevenLabsClient) do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return c.httpClient.Do(req)
}

// upstreamStatusError captures the provider's error body for diagnostics.
// The detail is parsed from the whole body; only the stored copy is cut.
func upstreamStatusError(op string, resp *http.Response) *apperr.Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorParse))
	body := strings.TrimSpace(string(raw[:min(len(raw), maxErrorBody)]))

	message := http.StatusText(resp.StatusCode)
	var detail struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &detail) == nil && len(detail.Detail) > 0 {
		message = providerDetailMessage(detail.Detail, message)
	}

	return &apperr.Error{
		Kind:    apperr.Upstream,
		Op:      op,
		Message: message,
		Status:  resp.StatusCode,
		Body:    body,
	}
}

// providerDetailMessage reads the "detail" field, which is either a
// string or an object with a message.
func providerDetailMessage(raw json.RawMessage, fallback string) string {
	var text string
	if json.Unmarshal(raw, &text) == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil && strings.TrimSpace(obj.Message) != "" {
		return strings.TrimSpace(obj.Message)
	}
	return fallback
}

func audioContentType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || !strings.HasPrefix(mediaType, "audio/") {
		return defaultContentType
	}
	return mediaType
}

// TrackFilename names the downloadable affirmation track for a content type.
func TrackFilename(contentType string) string {
	ext := "mp3"
	switch contentType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		ext = "wav"
	case "audio/ogg":
		ext = "ogg"
	case "audio/pcm", "audio/basic":
		ext = "pcm"
	case "audio/flac":
		ext = "flac"
	}
	return "affirmations." + ext
}
