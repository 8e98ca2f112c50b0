// Package prompts builds the chat messages for every semantic
// operation. Each builder returns a system + user message pair ready
// for the LLM client.
package prompts

import (
	"fmt"

	"github.com/soundprediction/graphrag/pkg/nlp"
)

// ExtractGraph asks the model to extract a typed entity-relation
// graph from a chunk of text. The response contract is JSON with
// local node ids that are only meaningful within one call.
func ExtractGraph(text string) []nlp.Message {
	sysPrompt := `You are a knowledge graph extraction engine. Extract entities and the relationships between them from the provided text.

Respond with JSON only, in exactly this shape:
{"nodes":[{"id":"1","name":"...","type":"...","desc":"..."}],"edges":[{"source":"1","target":"2","relationship":"..."}]}

Rules:
- "id" is a local identifier used only to reference nodes in "edges".
- "name" is the canonical entity name, "type" a short category (Person, Place, Organization, Concept, ...), "desc" a one-sentence description grounded in the text.
- Only include relationships stated or strongly implied by the text.
- Any extracted information should be returned in the same language as it was written in.`

	userPrompt := fmt.Sprintf("Extract the knowledge graph from this text:\n\n%s", text)
	return []nlp.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}
}

// MergeDescriptions asks the model to synthesize two descriptions of
// the same entity into one.
func MergeDescriptions(a, b string) []nlp.Message {
	sysPrompt := `You merge two descriptions of the same entity into a single description.
Keep every distinct fact from both inputs, drop repetition, and answer with the merged description only. No preamble.`

	userPrompt := fmt.Sprintf("Description 1:\n%s\n\nDescription 2:\n%s", a, b)
	return []nlp.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}
}

// InferRelation asks the model whether two described entities are
// related and in which direction.
func InferRelation(descA, descB string) []nlp.Message {
	sysPrompt := `You decide whether two entities are related based on their descriptions.

Respond with JSON only, in exactly this shape:
{"related":true,"source":"node1","relationship":"..."}

Rules:
- "related" is false when no meaningful relationship exists; then the other fields may be empty.
- "source" is "node1" when the first entity is the source of the relationship, "node2" when the second one is.
- "relationship" is a short verb phrase, e.g. "works at" or "is located in".`

	userPrompt := fmt.Sprintf("node1:\n%s\n\nnode2:\n%s", descA, descB)
	return []nlp.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}
}

// SummarizeCommunity asks the model to summarize the members of one
// graph community.
func SummarizeCommunity(memberDescriptions string) []nlp.Message {
	sysPrompt := `You summarize a community of related entities from a knowledge graph.
Write a cohesive summary of what connects these entities and what the community is about. Under 250 words. Answer with the summary only.`

	userPrompt := fmt.Sprintf("Community members:\n%s", memberDescriptions)
	return []nlp.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}
}

// SummarizeGlobal asks the model to synthesize community summaries
// into a corpus-level summary.
func SummarizeGlobal(communitySummaries string) []nlp.Message {
	sysPrompt := `You synthesize summaries of knowledge graph communities into one global summary of the corpus.
Cover the major themes and how they relate. Under 400 words. Answer with the summary only.`

	userPrompt := fmt.Sprintf("Community summaries:\n%s", communitySummaries)
	return []nlp.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}
}

// Answer asks the model to answer a question from a subgraph given as
// JSON, optionally with extra context (community and global
// summaries).
func Answer(subgraphJSON, question, extraContext string) []nlp.Message {
	sysPrompt := `You answer questions using a knowledge graph subgraph provided as JSON.
Ground every statement in the provided nodes and edges. If the subgraph does not contain the answer, say so. Answer in the language of the question.`

	userPrompt := fmt.Sprintf("Subgraph:\n%s\n", subgraphJSON)
	if extraContext != "" {
		userPrompt += fmt.Sprintf("\nAdditional context:\n%s\n", extraContext)
	}
	userPrompt += fmt.Sprintf("\nQuestion: %s", question)
	return []nlp.Message{
		nlp.NewSystemMessage(sysPrompt),
		nlp.NewUserMessage(userPrompt),
	}
}
