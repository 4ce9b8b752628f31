package capability

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/yoonhw/jibsa/internal/history"
	"github.com/yoonhw/jibsa/internal/listing"
	"github.com/yoonhw/jibsa/internal/task"
)

var familySizeRe = regexp.MustCompile(`(\d+)인`)

// RecommendationProvider narrows prior retrieval results with household
// heuristics: family-size area bands and station proximity classes.
type RecommendationProvider struct {
	chatModel model.ToolCallingChatModel
	history   *history.Store
}

// NewRecommendationProvider creates the provider. chatModel may be nil.
func NewRecommendationProvider(chatModel model.ToolCallingChatModel, hist *history.Store) *RecommendationProvider {
	return &RecommendationProvider{chatModel: chatModel, history: hist}
}

func (p *RecommendationProvider) Capability() task.Capability {
	return task.CapRecommendation
}

// Execute filters candidate records by the utterance's household hints and
// renders a ranked shortlist.
func (p *RecommendationProvider) Execute(ctx context.Context, t *task.Task) (*task.Result, error) {
	candidates := t.ContextRecords()
	if len(candidates) == 0 {
		if latest, ok := p.history.Latest(); ok {
			candidates = latest.Records
		}
	}
	if len(candidates) == 0 {
		return &task.Result{Text: "추천할 매물이 아직 없어요. 먼저 지역과 조건으로 검색해 주세요."}, nil
	}

	query := t.Query()
	picked := candidates
	var criteria []string

	if n, ok := familySize(query); ok {
		minArea, maxArea := areaBand(n)
		picked = filterRecords(picked, func(r listing.Record) bool {
			return r.AreaPyeong >= minArea && r.AreaPyeong <= maxArea
		})
		criteria = append(criteria, fmt.Sprintf("%d인 가구 적정 면적 %.0f~%.0f평", n, minArea, maxArea))
	}
	if strings.Contains(query, "역세권") {
		picked = filterRecords(picked, func(r listing.Record) bool {
			return listing.StationClass(r.DistanceToStation) != "비역세권"
		})
		criteria = append(criteria, "역세권 우선")
	}
	if len(picked) == 0 {
		return &task.Result{Text: "조건에 꼭 맞는 추천 매물이 없어서, 직전 검색 결과를 참고해 주세요."}, nil
	}
	if len(picked) > 5 {
		picked = picked[:5]
	}

	var b strings.Builder
	if len(criteria) > 0 {
		fmt.Fprintf(&b, "%s 기준으로 %d건을 추천해요.\n", strings.Join(criteria, ", "), len(picked))
	} else {
		fmt.Fprintf(&b, "조건에 맞는 추천 매물 %d건이에요.\n", len(picked))
	}
	for i, r := range picked {
		fmt.Fprintf(&b, "%d번 %s [%s]\n", i+1, r.Label(), listing.StationClass(r.DistanceToStation))
	}
	text := strings.TrimRight(b.String(), "\n")

	if polished := narrate(ctx, p.chatModel,
		"부동산 추천 결과를 두세 문장으로 친근하게 요약한다. 과장 없이 수치 그대로 쓴다.",
		text); polished != "" {
		text = polished + "\n" + text
	}
	return &task.Result{Text: text, Records: picked}, nil
}

// familySize extracts the household size from the utterance.
func familySize(query string) (int, bool) {
	if m := familySizeRe.FindStringSubmatch(query); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n, true
		}
	}
	if strings.Contains(query, "혼자") {
		return 1, true
	}
	if strings.Contains(query, "신혼") {
		return 2, true
	}
	return 0, false
}

// areaBand maps household size to a pyeong range.
func areaBand(persons int) (min, max float64) {
	return float64(7 + (persons-1)*5), float64(15 + (persons-1)*5)
}

func filterRecords(records []listing.Record, keep func(listing.Record) bool) []listing.Record {
	var out []listing.Record
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
