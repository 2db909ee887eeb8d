// Package assistant is the boundary to the AI peer-support chat. It is
// stateless and never touches the persisted store: the caller supplies the
// latest user text plus the prior turns, and gets back reply text or a
// fixed apology when the upstream call fails for any reason.
package assistant

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	requestTimeout = 30 * time.Second
	maxRetries     = 2
)

// FallbackReply is returned on any upstream failure. The conversation view
// renders it like a normal reply; errors never propagate to the student.
const FallbackReply = "The service is busy right now. Please try again in a moment, or call the campus emergency hotline if you need immediate help."

// systemPrompt frames the assistant as a campus counseling companion and
// tells it to point students in crisis at the built-in emergency number.
const systemPrompt = `You are a gentle, patient mental-health assistant for university students. ` +
	`Listen, offer emotional support, and encourage professional in-person counseling when appropriate. ` +
	`If the student shows signs of self-harm or suicidal intent, remind them in writing to call the emergency hotline built into this platform. ` +
	`Keep replies brief and compassionate; never lecture.`

// Turn is one prior exchange turn: Role is "user" for the student and
// "model" for the assistant.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Client calls the chat-completion API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// New returns a configured client. baseURL and model may be empty to use
// the provider defaults.
func New(apiKey, baseURL, model string) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:      model,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Reply produces the assistant's answer to userText given the prior turns.
// It always returns usable text: upstream failures degrade to
// FallbackReply.
func (c *Client) Reply(ctx context.Context, userText string, history []Turn) string {
	if c.apiKey == "" {
		log.Printf("assistant: no api key configured, returning fallback")
		return FallbackReply
	}

	opts := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(maxRetries),
		option.WithRequestTimeout(requestTimeout),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	client := openaigo.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model:    openaigo.ChatModel(c.model),
		Messages: buildMessages(userText, history),
	})
	if err != nil {
		log.Printf("assistant: chat completion failed: %v", err)
		return FallbackReply
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		log.Printf("assistant: empty completion")
		return FallbackReply
	}
	return resp.Choices[0].Message.Content
}

// buildMessages lays out system prompt, prior turns, then the new user
// text, mirroring how the conversation is shown on screen.
func buildMessages(userText string, history []Turn) []openaigo.ChatCompletionMessageParamUnion {
	messages := make([]openaigo.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openaigo.SystemMessage(systemPrompt))
	for _, turn := range history {
		if turn.Role == "user" {
			messages = append(messages, openaigo.UserMessage(turn.Text))
		} else {
			messages = append(messages, openaigo.AssistantMessage(turn.Text))
		}
	}
	return append(messages, openaigo.UserMessage(userText))
}
