package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/spigell/resume-tailor/internal/ai"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue map[string][]fakeChatResponse
}

type chatCallRecord struct {
	model  string
	config *genai.GenerateContentConfig
	chat   *fakeChat
}

type fakeChatResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeChat struct {
	mu       sync.Mutex
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	return f.response.resp, f.response.err
}

func newFakeChatCreator() *fakeChatCreator {
	return &fakeChatCreator{queue: make(map[string][]fakeChatResponse)}
}

func (f *fakeChatCreator) enqueue(model string, resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[model] = append(f.queue[model], fakeChatResponse{resp: resp, err: err})
}

func (f *fakeChatCreator) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	responses := f.queue[model]
	if len(responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := responses[0]
	f.queue[model] = responses[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, chat: chat})
	return chat, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func newTestGenerator(chats chatCreator) *Generator {
	return &Generator{
		chats:     chats,
		model:     "gemini-pro",
		maxLogLen: defaultMaxLogLength,
		logger:    zap.NewNop(),
	}
}

func TestGeneratorSendsSystemInstruction(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", textResponse("  tailored  "), nil)

	g := newTestGenerator(chats)

	output, err := g.GenerateContent(context.Background(), "system", "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "tailored" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(chats.calls))
	}

	call := chats.calls[0]
	if call.config == nil || call.config.SystemInstruction == nil {
		t.Fatalf("expected system instruction to be set")
	}
	if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
		t.Fatalf("unexpected system instruction: %q", got)
	}
	if len(call.chat.messages) != 1 || call.chat.messages[0] != "message" {
		t.Fatalf("unexpected chat message: %+v", call.chat.messages)
	}
}

func TestGeneratorJoinsParts(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "first"}, nil, {Text: " "}, {Text: "second"}}},
		}},
	}, nil)

	output, err := newTestGenerator(chats).GenerateContent(context.Background(), "", "msg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "first\nsecond" {
		t.Fatalf("unexpected output: %q", output)
	}
	if chats.calls[0].config.SystemInstruction != nil {
		t.Fatalf("expected no system instruction for empty system prompt")
	}
}

func TestGeneratorClassifiesErrors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantRateLimit bool
		wantDelay     time.Duration
	}{
		{
			name:          "server error is transient",
			err:           genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"},
			wantTransient: true,
		},
		{
			name: "quota message carries delay",
			err: genai.APIError{
				Code:    http.StatusTooManyRequests,
				Status:  "RESOURCE_EXHAUSTED",
				Message: "quota exhausted, retry after 60 seconds",
			},
			wantRateLimit: true,
			wantDelay:     time.Minute,
		},
		{
			name: "retry info detail carries delay",
			err: genai.APIError{
				Code:    http.StatusTooManyRequests,
				Details: []map[string]any{{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "7s"}},
			},
			wantRateLimit: true,
			wantDelay:     7 * time.Second,
		},
		{
			name: "bad request is permanent",
			err:  genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chats := newFakeChatCreator()
			chats.enqueue("gemini-pro", nil, tt.err)

			_, err := newTestGenerator(chats).GenerateContent(context.Background(), "sys", "msg")
			if err == nil {
				t.Fatal("expected error")
			}

			if got := errors.Is(err, ai.ErrTransient); got != tt.wantTransient {
				t.Fatalf("transient = %v, want %v (%v)", got, tt.wantTransient, err)
			}

			var rateErr *ai.RateLimitError
			if got := errors.As(err, &rateErr); got != tt.wantRateLimit {
				t.Fatalf("rate limited = %v, want %v (%v)", got, tt.wantRateLimit, err)
			}
			if tt.wantRateLimit && rateErr.RetryAfter != tt.wantDelay {
				t.Fatalf("unexpected retry delay: %v", rateErr.RetryAfter)
			}
		})
	}
}

func TestGeneratorEmptyResponseIsTransient(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", &genai.GenerateContentResponse{}, nil)

	_, err := newTestGenerator(chats).GenerateContent(context.Background(), "sys", "msg")
	if !errors.Is(err, ai.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestGeneratorRejectsEmptyMessage(t *testing.T) {
	chats := newFakeChatCreator()

	if _, err := newTestGenerator(chats).GenerateContent(context.Background(), "sys", "   "); err == nil {
		t.Fatal("expected error for empty message")
	}
	if len(chats.calls) != 0 {
		t.Fatalf("expected no calls, got %d", len(chats.calls))
	}
}
