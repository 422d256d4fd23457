package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"

	"sr-chatbot/internal/domain"
	"sr-chatbot/internal/infra/resilience"
)

const defaultModel = "gpt-4o-mini"

const (
	nameSystemPrompt = "Extract the person or company name from the message. " +
		"Set found to false and name to an empty string when the message contains no name."
	scopeSystemPrompt = "Determine whether the user wants an account statement for all of their contracts " +
		"(keywords: all, everything, multiple, every) or for one specific contract " +
		"(keywords: one, single, specific, 1). Answer unclear when neither applies."
	addressSystemPrompt = "Parse the delivery address into exactly three lines. " +
		"line1: street address or building number and name. " +
		"line2: area, district, city, state and country combined. " +
		"line3: only the postal or zip code."
)

var (
	nameSchema = json.RawMessage(`{
		"type":"object",
		"additionalProperties":false,
		"properties":{
			"found":{"type":"boolean"},
			"name":{"type":"string"}
		},
		"required":["found","name"]
	}`)
	scopeSchema = json.RawMessage(`{
		"type":"object",
		"additionalProperties":false,
		"properties":{
			"choice":{"type":"string","enum":["all","one","unclear"]}
		},
		"required":["choice"]
	}`)
	addressSchema = json.RawMessage(`{
		"type":"object",
		"additionalProperties":false,
		"properties":{
			"line1":{"type":"string"},
			"line2":{"type":"string"},
			"line3":{"type":"string"}
		},
		"required":["line1","line2","line3"]
	}`)
)

// NLU turns free-text user messages into the structured values the
// dialogue needs. Every call goes through a circuit breaker; callers fall
// back to keyword heuristics on any error.
type NLU struct {
	client *Client
	model  string
	cb     *gobreaker.CircuitBreaker
	retry  resilience.Config
}

// NewNLU returns an NLU using model, or gpt-4o-mini when model is empty.
func NewNLU(client *Client, model string, retry resilience.Config) (*NLU, error) {
	if client == nil {
		return nil, errors.New("openai: client must not be nil")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &NLU{
		client: client,
		model:  model,
		cb:     resilience.NewCircuitBreaker("openai"),
		retry:  retry,
	}, nil
}

// structured runs a strict-schema completion and decodes the answer into out.
func (n *NLU) structured(ctx context.Context, schemaName string, schema json.RawMessage, system, user string, out any) error {
	messages := []domain.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	var content string
	err := resilience.Guard(ctx, n.cb, n.retry, func() error {
		var callErr error
		content, callErr = n.client.Chat(ctx, n.model, messages,
			WithTemperature(0.1),
			WithMaxTokens(200),
			WithJSONSchema(schemaName, schema),
		)
		return classify(callErr)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("openai: decode %s: %w", schemaName, err)
	}
	return nil
}

// classify marks client-side failures as permanent so they are not retried.
func classify(err error) error {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 && statusErr.StatusCode != 429 {
		return resilience.Permanent(err)
	}
	return err
}

// ExtractName returns the person or company name mentioned in msg.
func (n *NLU) ExtractName(ctx context.Context, msg string) (string, bool, error) {
	var out struct {
		Found bool   `json:"found"`
		Name  string `json:"name"`
	}
	if err := n.structured(ctx, "extracted_name", nameSchema, nameSystemPrompt, "Message: "+msg, &out); err != nil {
		return "", false, err
	}
	name := strings.TrimSpace(out.Name)
	if !out.Found || name == "" || strings.EqualFold(name, "none") {
		return "", false, nil
	}
	return name, true, nil
}

// ClassifyStatementScope decides whether msg asks for all contracts or one.
func (n *NLU) ClassifyStatementScope(ctx context.Context, msg string) (domain.StatementScope, bool, error) {
	var out struct {
		Choice string `json:"choice"`
	}
	if err := n.structured(ctx, "statement_scope", scopeSchema, scopeSystemPrompt, "User message: "+msg, &out); err != nil {
		return domain.ScopeUnclear, false, err
	}
	return domain.ParseStatementScope(out.Choice), true, nil
}

// SplitAddress splits address into street, locality and postcode lines.
func (n *NLU) SplitAddress(ctx context.Context, address string) ([3]string, bool, error) {
	var out struct {
		Line1 string `json:"line1"`
		Line2 string `json:"line2"`
		Line3 string `json:"line3"`
	}
	if err := n.structured(ctx, "address_lines", addressSchema, addressSystemPrompt, "Address: "+address, &out); err != nil {
		return [3]string{}, false, err
	}
	lines := [3]string{
		strings.TrimSpace(out.Line1),
		strings.TrimSpace(out.Line2),
		strings.TrimSpace(out.Line3),
	}
	return lines, lines[0] != "" || lines[1] != "" || lines[2] != "", nil
}
