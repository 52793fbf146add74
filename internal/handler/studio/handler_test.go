package studio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/affirmation-studio/backend/internal/model/affirmation"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/speech"
	"github.com/zhouzirui/affirmation-studio/backend/internal/service/session"
	speechService "github.com/zhouzirui/affirmation-studio/backend/internal/service/speech"
	studioService "github.com/zhouzirui/affirmation-studio/backend/internal/service/studio"
)

type textStub struct {
	lines  []string
	result affirmation.ValidationResult
	err    error
	ctxErr error
}

func (s *textStub) Generate(ctx context.Context, _ string, _ int) ([]string, error) {
	s.ctxErr = ctx.Err()
	return s.lines, s.err
}

func (s *textStub) Validate(context.Context, []string) (affirmation.ValidationResult, error) {
	return s.result, s.err
}

type speechStub struct {
	calls int
}

func (s *speechStub) Synthesize(_ context.Context, text, voiceID string) (*speech.AudioResource, error) {
	s.calls++
	return &speech.AudioResource{
		Data:        []byte("mp3-bytes"),
		ContentType: "audio/mpeg",
		Filename:    "affirmations.mp3",
		Size:        9,
		VoiceID:     voiceID,
	}, nil
}

type testEnv struct {
	router *chi.Mux
	text   *textStub
	speech *speechStub
	conns  *ConnectionManager
}

func setupRouter(voices ...speech.Voice) *testEnv {
	env := &testEnv{
		text:   &textStub{},
		speech: &speechStub{},
		conns:  NewConnectionManager(),
	}
	ctrl := studioService.New(session.NewService(), env.text, env.speech,
		speechService.NewVoiceCatalog(voices...), studioService.NewBroker())

	env.router = chi.NewRouter()
	New(ctrl, env.conns).RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) open(t *testing.T, mode string) studioService.View {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/sessions", `{"mode":"`+mode+`"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	return decodeView(t, resp)
}

func decodeView(t *testing.T, resp *httptest.ResponseRecorder) studioService.View {
	t.Helper()
	var view studioService.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

type errorResponse struct {
	Error string              `json:"error"`
	Kind  apperr.Kind         `json:"kind"`
	View  *studioService.View `json:"view"`
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

var testVoices = []speech.Voice{{ID: "v1", DisplayName: "Rachel", Language: "en"}}

func TestOpenSessionDefaultsToAI(t *testing.T) {
	env := setupRouter(testVoices...)

	resp := env.do(t, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, resp.Code)
	view := decodeView(t, resp)
	assert.Equal(t, affirmation.ModeAI, view.Mode)
	assert.Equal(t, affirmation.StateIdle, view.State)
	assert.NotEmpty(t, view.SessionID)
	assert.True(t, view.Panels.Goal)
}

func TestOpenSessionInvalidMode(t *testing.T) {
	env := setupRouter(testVoices...)

	resp := env.do(t, http.MethodPost, "/sessions", `{"mode":"karaoke"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, apperr.InvalidInput, decodeError(t, resp).Kind)

	resp = env.do(t, http.MethodPost, "/sessions", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	env := setupRouter(testVoices...)

	resp := env.do(t, http.MethodGet, "/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	body := decodeError(t, resp)
	assert.Equal(t, apperr.NotFound, body.Kind)
	assert.Nil(t, body.View)

	resp = env.do(t, http.MethodPost, "/sessions/missing/generate", `{"goal":"calm"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGenerateSynthesizeAndDownload(t *testing.T) {
	env := setupRouter(testVoices...)
	env.text.lines = []string{"I am calm", "I am strong"}
	id := env.open(t, "ai").SessionID

	resp := env.do(t, http.MethodPost, "/sessions/"+id+"/generate", `{"goal":"calm","count":2}`)
	require.Equal(t, http.StatusOK, resp.Code)
	view := decodeView(t, resp)
	assert.Equal(t, affirmation.StateGenerated, view.State)
	assert.Len(t, view.Items, 2)
	assert.True(t, view.Controls.Synthesize)

	resp = env.do(t, http.MethodPost, "/sessions/"+id+"/synthesize", `{"voiceId":"v1"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	view = decodeView(t, resp)
	require.NotNil(t, view.Audio)
	assert.Equal(t, "9 B", view.Audio.SizeText)

	resp = env.do(t, http.MethodGet, "/sessions/"+id+"/audio?download=1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "audio/mpeg", resp.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="affirmations.mp3"`, resp.Header().Get("Content-Disposition"))
	assert.Equal(t, "mp3-bytes", resp.Body.String())

	resp = env.do(t, http.MethodGet, "/sessions/"+id+"/audio", "")
	assert.True(t, strings.HasPrefix(resp.Header().Get("Content-Disposition"), "inline"))
}

func TestAudioMissingIsNotFound(t *testing.T) {
	env := setupRouter(testVoices...)
	id := env.open(t, "ai").SessionID

	resp := env.do(t, http.MethodGet, "/sessions/"+id+"/audio", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRejectedSynthesisIsConflictWithView(t *testing.T) {
	env := setupRouter(testVoices...)
	env.text.result = affirmation.ValidationResult{Status: affirmation.StatusRejected, Message: "not affirmations"}
	id := env.open(t, "custom").SessionID

	resp := env.do(t, http.MethodPost, "/sessions/"+id+"/confirm", `{"text":"buy milk"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, affirmation.StateRejected, decodeView(t, resp).State)

	resp = env.do(t, http.MethodPost, "/sessions/"+id+"/synthesize", `{"voiceId":"v1"}`)
	assert.Equal(t, http.StatusConflict, resp.Code)
	body := decodeError(t, resp)
	assert.Equal(t, apperr.Conflict, body.Kind)
	require.NotNil(t, body.View)
	assert.Equal(t, affirmation.StateRejected, body.View.State)
	require.NotNil(t, body.View.Notice)
	assert.Zero(t, env.speech.calls)

	resp = env.do(t, http.MethodPost, "/sessions/"+id+"/edit", "")
	require.Equal(t, http.StatusOK, resp.Code)
	view := decodeView(t, resp)
	assert.Equal(t, affirmation.StateEditing, view.State)
	assert.Equal(t, "buy milk", view.EditText)
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	env := setupRouter(testVoices...)
	env.text.err = apperr.UpstreamFailure("generate affirmations", errors.New("connection reset"))
	id := env.open(t, "ai").SessionID

	resp := env.do(t, http.MethodPost, "/sessions/"+id+"/generate", `{"goal":"calm"}`)
	assert.Equal(t, http.StatusBadGateway, resp.Code)
	body := decodeError(t, resp)
	assert.Equal(t, apperr.Upstream, body.Kind)
	assert.Contains(t, body.Error, "connection reset")
	require.NotNil(t, body.View)
	assert.Equal(t, affirmation.StateIdle, body.View.State)
}

func TestProviderCallOutlivesClientDisconnect(t *testing.T) {
	env := setupRouter(testVoices...)
	env.text.lines = []string{"I am calm"}
	id := env.open(t, "ai").SessionID

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/generate", strings.NewReader(`{"goal":"calm"}`)).WithContext(ctx)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, env.text.ctxErr)
	assert.Equal(t, affirmation.StateGenerated, decodeView(t, resp).State)
}

func TestApplySuggestionsRoute(t *testing.T) {
	env := setupRouter(testVoices...)
	env.text.result = affirmation.ValidationResult{
		Status:      affirmation.StatusSuggestions,
		Suggestions: []affirmation.Suggestion{{Original: "I will be rich", Suggested: "I am abundant"}},
	}
	id := env.open(t, "custom").SessionID

	resp := env.do(t, http.MethodPost, "/sessions/"+id+"/confirm", `{"text":"I will be rich\nI am loved"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.do(t, http.MethodPost, "/sessions/"+id+"/suggestions/apply", "")
	require.Equal(t, http.StatusOK, resp.Code)
	view := decodeView(t, resp)
	assert.Equal(t, []string{"I am abundant", "I am loved"}, affirmation.Texts(view.Items))

	resp = env.do(t, http.MethodPost, "/sessions/"+id+"/suggestions/apply", "")
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestSwitchModeAndDelete(t *testing.T) {
	env := setupRouter(testVoices...)
	id := env.open(t, "ai").SessionID

	resp := env.do(t, http.MethodPost, "/sessions/"+id+"/mode", `{"mode":"custom"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, affirmation.StateEditing, decodeView(t, resp).State)

	resp = env.do(t, http.MethodPost, "/sessions/"+id+"/mode", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = env.do(t, http.MethodGet, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestWebSocketPushesViews(t *testing.T) {
	env := setupRouter(testVoices...)
	env.text.lines = []string{"I am calm"}
	id := env.open(t, "ai").SessionID

	server := httptest.NewServer(env.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg struct {
		Type string             `json:"type"`
		Data studioService.View `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "view", msg.Type)
	assert.Equal(t, affirmation.StateIdle, msg.Data.State)

	require.Eventually(t, func() bool { return env.conns.Count() == 1 }, time.Second, 10*time.Millisecond)

	resp := env.do(t, http.MethodPost, "/sessions/"+id+"/generate", `{"goal":"calm"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	for msg.Data.State != affirmation.StateGenerated {
		require.NoError(t, conn.ReadJSON(&msg))
	}
	assert.Len(t, msg.Data.Items, 1)

	resp = env.do(t, http.MethodDelete, "/sessions/"+id, "")
	require.Equal(t, http.StatusNoContent, resp.Code)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return env.conns.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketUnknownSession(t *testing.T) {
	env := setupRouter(testVoices...)
	server := httptest.NewServer(env.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
