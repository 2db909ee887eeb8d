package assistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReplyWithoutAPIKeyFallsBack(t *testing.T) {
	c := New("", "", "")
	got := c.Reply(context.Background(), "hello", nil)
	if got != FallbackReply {
		t.Errorf("expected fallback reply, got %q", got)
	}
}

func TestReplyReturnsCompletionText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "test",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "I hear you. Take a deep breath."}
			}]
		}`))
	}))
	defer srv.Close()

	c := New("test-key", srv.URL, "test-model")
	got := c.Reply(context.Background(), "I feel stressed", []Turn{
		{Role: "user", Text: "hi"},
		{Role: "model", Text: "hello, how are you feeling?"},
	})
	if got != "I hear you. Take a deep breath." {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestReplyUpstreamFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New("test-key", srv.URL, "")
	got := c.Reply(context.Background(), "hello", nil)
	if got != FallbackReply {
		t.Errorf("expected fallback reply on upstream failure, got %q", got)
	}
}

func TestBuildMessagesOrder(t *testing.T) {
	msgs := buildMessages("latest", []Turn{
		{Role: "user", Text: "first"},
		{Role: "model", Text: "second"},
	})
	// System prompt + 2 history turns + latest user text.
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
}
