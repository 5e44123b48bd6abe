// Package server implements the companion HTTP server: a text chat endpoint
// backed by a chat completion provider, and a connect endpoint that mints
// LiveKit room credentials for voice clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chriscow/voicechat/internal/chat"
	"github.com/chriscow/voicechat/pkg/ai/llm"
	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
)

var (
	chatRequests   = expvar.NewInt("voicechat_chat_requests")
	chatFailures   = expvar.NewInt("voicechat_chat_failures")
	tokensIssued   = expvar.NewInt("voicechat_tokens_issued")
	llmTokensTotal = expvar.NewInt("voicechat_llm_tokens")
)

// Config holds configuration for the server.
type Config struct {
	Addr string

	// LiveKit credentials used to mint room tokens
	LiveKitURL string
	APIKey     string
	APISecret  string

	// Room is joined by every client. Empty gives each client its own room.
	Room     string
	TokenTTL time.Duration

	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	TopP         float32

	// AllowedOrigin is sent as Access-Control-Allow-Origin
	AllowedOrigin string
}

// Validate checks that the configuration can serve requests.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.LiveKitURL == "" {
		return fmt.Errorf("LiveKit URL is required")
	}
	if c.APIKey == "" || c.APISecret == "" {
		return fmt.Errorf("LiveKit API key and secret are required")
	}
	return nil
}

// ConnectResponse carries the credentials a voice client joins with.
type ConnectResponse struct {
	URL   string `json:"url"`
	Token string `json:"token"`
	Room  string `json:"room"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the chat and connect endpoints.
type Server struct {
	config Config
	llm    llm.LLM
}

// New creates a Server.
func New(config Config, provider llm.LLM) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("LLM provider is required")
	}
	if config.TokenTTL == 0 {
		config.TokenTTL = time.Hour
	}
	if config.AllowedOrigin == "" {
		config.AllowedOrigin = "*"
	}
	return &Server{config: config, llm: provider}, nil
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /connect", s.handleConnect)
	mux.HandleFunc("POST /{$}", s.handleConnect)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /debug/vars", expvar.Handler())
	return s.cors(mux)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", slog.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	chatRequests.Add(1)

	var req chat.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	message := strings.TrimSpace(req.UserMessage)
	if message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_message is required"})
		return
	}

	resp, err := s.llm.Chat(r.Context(), llm.ChatRequest{
		Messages:    llm.NewConversation(s.config.SystemPrompt, message),
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		TopP:        s.config.TopP,
	})
	if err != nil {
		chatFailures.Add(1)
		slog.Error("Chat completion failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "chat completion failed"})
		return
	}
	llmTokensTotal.Add(int64(resp.TokensUsed))

	slog.Info("Chat completion",
		slog.Int("tokens", resp.TokensUsed),
		slog.String("finish_reason", resp.FinishReason))
	writeJSON(w, http.StatusOK, chat.Response{BotResponse: resp.Message.Content})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	room := s.config.Room
	if room == "" {
		room = "voicechat-" + uuid.NewString()[:8]
	}
	identity := "user-" + uuid.NewString()

	token, err := auth.NewAccessToken(s.config.APIKey, s.config.APISecret).
		SetIdentity(identity).
		SetValidFor(s.config.TokenTTL).
		SetVideoGrant(&auth.VideoGrant{
			RoomJoin: true,
			Room:     room,
		}).
		ToJWT()
	if err != nil {
		slog.Error("Failed to mint access token", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create token"})
		return
	}
	tokensIssued.Add(1)

	slog.Info("Issued room token", slog.String("room", room), slog.String("identity", identity))
	writeJSON(w, http.StatusOK, ConnectResponse{URL: s.config.LiveKitURL, Token: token, Room: room})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.config.AllowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", slog.String("error", err.Error()))
	}
}
