package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/graphrag/pkg/nlp"
	"github.com/soundprediction/graphrag/pkg/prompts"
	"github.com/soundprediction/graphrag/pkg/types"
)

// LLMClient implements Client on top of an nlp.Client.
type LLMClient struct {
	llm nlp.Client
}

// NewLLMClient creates a semantic client backed by llm.
func NewLLMClient(llm nlp.Client) *LLMClient {
	return &LLMClient{llm: llm}
}

var (
	thinkTagRe  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
)

// cleanModelJSON strips think tags and code fences, then repairs the
// remaining JSON. Models routinely wrap JSON in markdown fences or
// leak reasoning tags; repair handles truncation and loose quoting.
func cleanModelJSON(content string) string {
	content = thinkTagRe.ReplaceAllString(content, "")
	if m := codeFenceRe.FindStringSubmatch(content); m != nil {
		content = m[1]
	}
	content = strings.TrimSpace(content)
	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return content
	}
	return repaired
}

func (c *LLMClient) chatJSON(ctx context.Context, messages []nlp.Message, out any) error {
	resp, err := c.llm.Chat(ctx, messages)
	if err != nil {
		return err
	}
	cleaned := cleanModelJSON(resp.Content)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("unmarshal model response: %w", err)
	}
	return nil
}

func (c *LLMClient) chatText(ctx context.Context, messages []nlp.Message) (string, error) {
	resp, err := c.llm.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	content := thinkTagRe.ReplaceAllString(resp.Content, "")
	return strings.TrimSpace(content), nil
}

// ExtractGraph extracts a typed entity-relation graph from text.
func (c *LLMClient) ExtractGraph(ctx context.Context, text string) (*types.ExtractedGraph, error) {
	var graph types.ExtractedGraph
	if err := c.chatJSON(ctx, prompts.ExtractGraph(text), &graph); err != nil {
		return nil, fmt.Errorf("extract graph: %w", err)
	}
	return &graph, nil
}

// MergeDescriptions synthesizes one description from two.
func (c *LLMClient) MergeDescriptions(ctx context.Context, a, b string) (string, error) {
	merged, err := c.chatText(ctx, prompts.MergeDescriptions(a, b))
	if err != nil {
		return "", fmt.Errorf("merge descriptions: %w", err)
	}
	return merged, nil
}

// InferRelation decides whether two node descriptions are related.
func (c *LLMClient) InferRelation(ctx context.Context, descA, descB string) (*types.RelationInference, error) {
	var inference types.RelationInference
	if err := c.chatJSON(ctx, prompts.InferRelation(descA, descB), &inference); err != nil {
		return nil, fmt.Errorf("infer relation: %w", err)
	}
	if inference.Source != types.RelationSourceSecond {
		inference.Source = types.RelationSourceFirst
	}
	return &inference, nil
}

// SummarizeCommunity summarizes one community's member descriptions.
func (c *LLMClient) SummarizeCommunity(ctx context.Context, memberDescriptions string) (string, error) {
	summary, err := c.chatText(ctx, prompts.SummarizeCommunity(memberDescriptions))
	if err != nil {
		return "", fmt.Errorf("summarize community: %w", err)
	}
	return summary, nil
}

// SummarizeGlobal synthesizes community summaries into one.
func (c *LLMClient) SummarizeGlobal(ctx context.Context, communitySummaries string) (string, error) {
	summary, err := c.chatText(ctx, prompts.SummarizeGlobal(communitySummaries))
	if err != nil {
		return "", fmt.Errorf("summarize global: %w", err)
	}
	return summary, nil
}

// Answer answers a question given a subgraph as JSON.
func (c *LLMClient) Answer(ctx context.Context, subgraphJSON, question, extraContext string) (string, error) {
	answer, err := c.chatText(ctx, prompts.Answer(subgraphJSON, question, extraContext))
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}
	return answer, nil
}

// AnswerStream streams the answer fragments to fn.
func (c *LLMClient) AnswerStream(ctx context.Context, subgraphJSON, question, extraContext string, fn func(fragment string) error) error {
	err := c.llm.ChatStream(ctx, prompts.Answer(subgraphJSON, question, extraContext), fn)
	if err != nil {
		return fmt.Errorf("answer stream: %w", err)
	}
	return nil
}
