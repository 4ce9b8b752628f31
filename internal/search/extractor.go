package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const extractSystemPrompt = `부동산 검색 질의에서 검색 조건을 추출한다.
다음 JSON 스키마로만 답한다. 언급되지 않은 필드는 생략한다.
{"gu": "서초구", "dong": "방배동", "rent_type": "전세|월세",
 "max_deposit": 만원단위정수, "max_monthly": 만원단위정수,
 "station_name": "강남역", "max_distance": 미터단위정수}`

// Extractor derives structured search params from an utterance, preferring
// the chat model and falling back to the deterministic rule pass. A nil
// model always rule-parses.
type Extractor struct {
	chatModel model.ToolCallingChatModel
}

// NewExtractor creates an Extractor. chatModel may be nil.
func NewExtractor(chatModel model.ToolCallingChatModel) *Extractor {
	return &Extractor{chatModel: chatModel}
}

// Extract returns the structured params for utterance. It never fails: any
// model error or unparsable output degrades to ParseParams.
func (e *Extractor) Extract(ctx context.Context, utterance string) Params {
	if e.chatModel == nil {
		return ParseParams(utterance)
	}

	msgs := []*schema.Message{
		schema.SystemMessage(extractSystemPrompt),
		schema.UserMessage(utterance),
	}
	resp, err := e.chatModel.Generate(ctx, msgs)
	if err != nil {
		slog.Debug("search extractor: model call failed, using rule pass", "error", err)
		return ParseParams(utterance)
	}

	p, ok := parseParamsJSON(resp.Content)
	if !ok {
		slog.Debug("search extractor: unparsable model output, using rule pass")
		return ParseParams(utterance)
	}
	if p.Station != "" && p.MaxDistance <= 0 {
		p.MaxDistance = DefaultStationDistance
	}
	return p
}

// parseParamsJSON extracts Params from a model response, handling raw JSON
// and markdown fences.
func parseParamsJSON(resp string) (Params, bool) {
	resp = StripFences(resp)
	var p Params
	if err := json.Unmarshal([]byte(resp), &p); err != nil {
		return Params{}, false
	}
	return p, true
}

// StripFences removes a surrounding markdown code fence if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) >= 2 {
		lines = lines[1:]
		if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
			lines = lines[:len(lines)-1]
		}
		s = strings.Join(lines, "\n")
	}
	return strings.TrimSpace(s)
}
