// Package intent turns one user utterance into an ordered collection of
// tasks with capability types, payloads, priorities and dependencies.
package intent

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/yoonhw/jibsa/internal/search"
	"github.com/yoonhw/jibsa/internal/task"
)

// Classification is the structured intent of one utterance.
type Classification struct {
	Primary         task.Capability
	Secondary       []task.Capability
	Confidence      float64
	RequiresContext bool
	Complex         bool
	Reasoning       string
}

const classifySystemPrompt = `부동산 비서의 의도 분류기다. 사용자 발화를 분류해
다음 JSON으로만 답한다.
{"primary_intent": "retrieval|similarity|analysis|recommendation|comparison|saved_list|conversational",
 "secondary_intents": [...],
 "confidence": 0.0~1.0,
 "requires_existing_context": true|false,
 "is_complex_request": true|false,
 "reasoning": "한 줄 근거"}
검색/매물 찾기는 retrieval, 이전 결과 참조가 필요한 비교는 comparison,
관심 목록 조작은 saved_list다.`

type classifierPayload struct {
	PrimaryIntent    string   `json:"primary_intent"`
	SecondaryIntents []string `json:"secondary_intents"`
	Confidence       float64  `json:"confidence"`
	RequiresContext  bool     `json:"requires_existing_context"`
	IsComplex        bool     `json:"is_complex_request"`
	Reasoning        string   `json:"reasoning"`
}

// Classifier resolves an utterance to a Classification. The model-backed
// strategy degrades to the rule pass on any failure; the result is never an
// error, matching the requirement that decomposition is total.
type Classifier struct {
	chatModel model.ToolCallingChatModel
}

// NewClassifier creates a Classifier. chatModel may be nil to force the
// rule strategy.
func NewClassifier(chatModel model.ToolCallingChatModel) *Classifier {
	return &Classifier{chatModel: chatModel}
}

// Classify returns the utterance's classification.
func (c *Classifier) Classify(ctx context.Context, utterance string) Classification {
	if c.chatModel == nil {
		return classifyByRules(utterance)
	}

	msgs := []*schema.Message{
		schema.SystemMessage(classifySystemPrompt),
		schema.UserMessage(utterance),
	}
	resp, err := c.chatModel.Generate(ctx, msgs)
	if err != nil {
		slog.Debug("intent: model classification failed, using rules", "error", err)
		return classifyByRules(utterance)
	}

	var p classifierPayload
	if err := json.Unmarshal([]byte(search.StripFences(resp.Content)), &p); err != nil {
		slog.Debug("intent: unparsable classification, using rules", "error", err)
		return classifyByRules(utterance)
	}

	primary, ok := parseCapability(p.PrimaryIntent)
	if !ok {
		slog.Debug("intent: unknown primary intent, using rules", "intent", p.PrimaryIntent)
		return classifyByRules(utterance)
	}
	cls := Classification{
		Primary:         primary,
		Confidence:      p.Confidence,
		RequiresContext: p.RequiresContext,
		Complex:         p.IsComplex,
		Reasoning:       p.Reasoning,
	}
	for _, s := range p.SecondaryIntents {
		if sec, ok := parseCapability(s); ok && sec != primary {
			cls.Secondary = append(cls.Secondary, sec)
		}
	}
	if len(cls.Secondary) > 0 {
		cls.Complex = true
	}
	return cls
}

func parseCapability(s string) (task.Capability, bool) {
	c := task.Capability(s)
	for _, known := range task.Capabilities {
		if c == known {
			return c, true
		}
	}
	// Accept the aliases the model tends to produce.
	switch s {
	case "search":
		return task.CapRetrieval, true
	case "similarity_search", "similar":
		return task.CapSimilarity, true
	case "wishlist":
		return task.CapSavedList, true
	case "chat":
		return task.CapConversational, true
	}
	return "", false
}
