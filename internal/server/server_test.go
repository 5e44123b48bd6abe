package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chriscow/voicechat/internal/chat"
	"github.com/chriscow/voicechat/pkg/ai/llm"
	"github.com/chriscow/voicechat/pkg/ai/llm/fake"
	"github.com/livekit/protocol/auth"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "APIdevkey"
	testSecret = "devsecret-devsecret-devsecret-devsecret"
)

func testConfig() Config {
	return Config{
		Addr:         "127.0.0.1:0",
		LiveKitURL:   "wss://voice.example.com",
		APIKey:       testKey,
		APISecret:    testSecret,
		SystemPrompt: "You are a helpful assistant.",
		MaxTokens:    250,
		Temperature:  0.7,
		TopP:         1,
	}
}

func newTestServer(t *testing.T, provider llm.LLM, modify ...func(*Config)) *Server {
	t.Helper()
	cfg := testConfig()
	for _, m := range modify {
		m(&cfg)
	}
	srv, err := New(cfg, provider)
	require.NoError(t, err)
	return srv
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "missing addr", modify: func(c *Config) { c.Addr = "" }},
		{name: "missing livekit url", modify: func(c *Config) { c.LiveKitURL = "" }},
		{name: "missing api key", modify: func(c *Config) { c.APIKey = "" }},
		{name: "missing api secret", modify: func(c *Config) { c.APISecret = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	_, err := New(testConfig(), nil)
	require.Error(t, err)
}

func TestHandleChat(t *testing.T) {
	provider := fake.NewFakeLLM("you said: %s")
	h := newTestServer(t, provider).Handler()

	rec := post(t, h, "/chat", `{"user_message":"  namaste  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp chat.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "you said: namaste", resp.BotResponse)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, 250, reqs[0].MaxTokens)
	require.InDelta(t, 0.7, reqs[0].Temperature, 0.001)
	require.Equal(t, llm.NewConversation("You are a helpful assistant.", "namaste"), reqs[0].Messages)
}

func TestHandleChat_BadRequests(t *testing.T) {
	provider := fake.NewFakeLLM()
	h := newTestServer(t, provider).Handler()

	for _, body := range []string{`not json`, `{}`, `{"user_message":"   "}`} {
		rec := post(t, h, "/chat", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	require.Empty(t, provider.Requests())

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleChat_UpstreamFailure(t *testing.T) {
	provider := fake.NewFakeLLM()
	provider.Err = errors.New("rate limited")
	h := newTestServer(t, provider).Handler()

	rec := post(t, h, "/chat", `{"user_message":"hello"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "chat completion failed")
}

func TestHandleChat_WorksWithChatClient(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, fake.NewFakeLLM("pong")).Handler())
	defer ts.Close()

	reply, err := chat.NewClient(ts.URL+"/chat", nil).Ask(context.Background(), "ping")
	require.NoError(t, err)
	require.Equal(t, "pong", reply)
}

func TestHandleConnect(t *testing.T) {
	h := newTestServer(t, fake.NewFakeLLM(), func(c *Config) { c.Room = "lobby" }).Handler()

	for _, path := range []string{"/connect", "/"} {
		t.Run(path, func(t *testing.T) {
			rec := post(t, h, path, `{}`)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp ConnectResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, "wss://voice.example.com", resp.URL)
			require.Equal(t, "lobby", resp.Room)

			verifier, err := auth.ParseAPIToken(resp.Token)
			require.NoError(t, err)
			require.Equal(t, testKey, verifier.APIKey())
			require.True(t, strings.HasPrefix(verifier.Identity(), "user-"))

			grants, err := verifier.Verify(testSecret)
			require.NoError(t, err)
			require.NotNil(t, grants.Video)
			require.True(t, grants.Video.RoomJoin)
			require.Equal(t, "lobby", grants.Video.Room)
		})
	}
}

func TestHandleConnect_RoomPerClient(t *testing.T) {
	h := newTestServer(t, fake.NewFakeLLM()).Handler()

	rooms := map[string]bool{}
	for i := 0; i < 3; i++ {
		rec := post(t, h, "/connect", `{}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ConnectResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, strings.HasPrefix(resp.Room, "voicechat-"))
		rooms[resp.Room] = true
	}
	require.Len(t, rooms, 3)
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, fake.NewFakeLLM(), func(c *Config) { c.AllowedOrigin = "https://app.example.com" }).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, fake.NewFakeLLM()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRun_Shutdown(t *testing.T) {
	srv := newTestServer(t, fake.NewFakeLLM())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
