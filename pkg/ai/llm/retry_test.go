package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chriscow/voicechat/pkg/ai"
	"github.com/matryer/is"
)

type flakyLLM struct {
	failures int
	err      error
	calls    int
}

func (f *flakyLLM) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return ChatResponse{}, f.err
	}
	return ChatResponse{Message: Message{Role: RoleAssistant, Content: "ok"}}, nil
}

func TestWithRetry(t *testing.T) {
	is := is.New(t)

	cfg := ai.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffFactor: 1}
	req := ChatRequest{Messages: NewConversation("", "hi")}

	flaky := &flakyLLM{failures: 2, err: ai.NewRecoverableError(errors.New("503"))}
	resp, err := WithRetry(flaky, cfg).Chat(context.Background(), req)
	is.NoErr(err)
	is.Equal(resp.Message.Content, "ok")
	is.Equal(flaky.calls, 3)

	fatal := &flakyLLM{failures: 5, err: ai.NewFatalError(errors.New("401"))}
	_, err = WithRetry(fatal, cfg).Chat(context.Background(), req)
	is.True(ai.IsFatal(err))
	is.Equal(fatal.calls, 1)
}
