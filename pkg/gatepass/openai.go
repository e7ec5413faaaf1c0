package gatepass

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	passToolName  = "issue_gate_pass"
	shareToolName = "format_share_message"
)

// OpenAIConfig configures the OpenAI-backed client
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional, for proxies and tests
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// OpenAIClient generates passes and share messages with a chat model.
// Every call forces a strict tool call so the output is always schema-shaped JSON.
type OpenAIClient struct {
	client openai.Client
	model  shared.ChatModel
}

// NewOpenAIClient creates the client. APIKey must be set.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := shared.ChatModelGPT4oMini
	if cfg.Model != "" {
		model = shared.ChatModel(cfg.Model)
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Name identifies the client in logs and metrics
func (c *OpenAIClient) Name() string {
	return "openai"
}

// GeneratePass asks the model for display lines, an 8-character code and guest instructions.
// The purpose is given to the model for context only and must not be echoed.
func (c *OpenAIClient) GeneratePass(ctx context.Context, req PassRequest) (*PassContent, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"displayInfo": map[string]any{
				"type":        "array",
				"items":       map[string]string{"type": "string"},
				"description": `Lines formatted "Label: Value" shown on the pass.`,
			},
			"qrData": map[string]any{
				"type":        "string",
				"description": "A unique 8-character alphanumeric code.",
			},
			"instructions": map[string]any{
				"type":        "string",
				"description": "Short instructions for the guest at the gate.",
			},
		},
		"required":             []string{"displayInfo", "qrData", "instructions"},
		"additionalProperties": false,
	}

	system := `You create gate passes for a residential society.
Call issue_gate_pass exactly once.
Rules:
1. displayInfo must include "Guest: <guest name>" and "Flat: <flat number>".
2. qrData must be exactly 8 characters, letters A-Z and digits 0-9 only.
3. Never mention the purpose of the visit anywhere in the output. It is private to the resident.`

	user := fmt.Sprintf("Guest name: %s\nFlat number: %s\nPurpose (private, do not include): %s",
		req.GuestName, req.FlatNumber, req.Purpose)

	args, err := c.callTool(ctx, passToolName, "Issue a gate pass for a pre-approved guest.", schema, system, user)
	if err != nil {
		return nil, err
	}

	var out PassContent
	if err := json.Unmarshal([]byte(args), &out); err != nil {
		return nil, fmt.Errorf("unmarshal gate pass: %w", err)
	}

	return &out, nil
}

// FormatShareMessage asks the model for a guest-facing message. Email messages
// carry a subject line and a polite body; SMS messages stay short.
func (c *OpenAIClient) FormatShareMessage(ctx context.Context, req ShareRequest) (string, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The full message text to send to the guest.",
			},
		},
		"required":             []string{"message"},
		"additionalProperties": false,
	}

	style := "Keep it concise and suitable for SMS."
	if req.Method == "email" {
		style = `Start with a "Subject: " line, then a blank line, then a friendly, polite email body.`
	}

	system := "You write messages that residents send to their invited guests. Call format_share_message exactly once. " + style

	user := fmt.Sprintf(
		"Guest: %s\nFlat: %s\nGate pass code: %s\nValid until: %s\nInstructions: %s",
		req.VisitorName, req.FlatNumber, req.QRData,
		req.ValidUntil.Format(time.RFC1123), req.Instructions,
	)

	args, err := c.callTool(ctx, shareToolName, "Compose a gate pass share message.", schema, system, user)
	if err != nil {
		return "", err
	}

	var out struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(args), &out); err != nil {
		return "", fmt.Errorf("unmarshal share message: %w", err)
	}

	return out.Message, nil
}

func (c *OpenAIClient) callTool(
	ctx context.Context,
	name, description string,
	schema map[string]any,
	system, user string,
) (string, error) {
	fn := shared.FunctionDefinitionParam{
		Name:        name,
		Description: openai.String(description),
		Strict:      openai.Bool(true),
		Parameters:  schema,
	}

	req := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Tools: []openai.ChatCompletionToolParam{{
			Function: fn,
		}},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{
					Name: name,
				},
			},
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return "", fmt.Errorf("openai: no function call returned")
	}

	return resp.Choices[0].Message.ToolCalls[0].Function.Arguments, nil
}
