package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

const commentSystemPrompt = `You write one short comment (2-3 sentences, plain text, no markdown)
for a delivery-station operations channel. The input is a ranked list of drivers whose
contact-compliance rate over the trailing window is below target, with the org-rate gain
expected if each driver's outstanding contacts were resolved. Point out where follow-up
effort pays off most. Be factual and brief; do not invent numbers.`

// GenerateImpactComment asks the configured model for a short free-text
// comment about the ranking. Used only when the operator didn't supply one
// and an API key is configured; any failure falls back to no comment.
func GenerateImpactComment(cfg Config, entries []ImpactEntry, org OrgRollingMetric) (string, error) {
	if !cfg.LLMConfigured() {
		return "", fmt.Errorf("anthropic_api_key is not configured")
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no ranked entries to summarize")
	}

	model := cfg.LLMModel
	if model == "" {
		model = defaultAnthropicModel
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Org rate: %s (%d done of %d required).\n", formatPercent(org.Rate()), org.Done, org.Required)
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s rate=%s outstanding=%d impact=+%.1fpt\n",
			i+1, e.Driver, formatPercent(e.Rate), e.NoContact, e.Impact*100)
	}

	log.Printf("llm comment provider=anthropic model=%s entries=%d", model, len(entries))

	client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	message, err := client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: commentSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(b.String())),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d",
				len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}
