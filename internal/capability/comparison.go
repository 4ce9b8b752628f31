package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/yoonhw/jibsa/internal/history"
	"github.com/yoonhw/jibsa/internal/listing"
	"github.com/yoonhw/jibsa/internal/task"
)

// ComparisonProvider compares two or more resolved listings against each
// other and a synthetic average baseline.
type ComparisonProvider struct {
	chatModel model.ToolCallingChatModel
	history   *history.Store
}

// NewComparisonProvider creates the provider. chatModel may be nil.
func NewComparisonProvider(chatModel model.ToolCallingChatModel, hist *history.Store) *ComparisonProvider {
	return &ComparisonProvider{chatModel: chatModel, history: hist}
}

func (p *ComparisonProvider) Capability() task.Capability {
	return task.CapComparison
}

// Execute renders a line per listing plus the average baseline. A
// comparison fed by a predecessor carries no records in its payload; it
// picks up the latest search results, which the predecessor has refreshed
// by the time this runs.
func (p *ComparisonProvider) Execute(ctx context.Context, t *task.Task) (*task.Result, error) {
	records := t.ContextRecords()
	if len(records) < 2 {
		if latest, ok := p.history.Latest(); ok && len(latest.Records) >= 2 {
			records = latest.Records
		}
	}
	if len(records) < 2 {
		return &task.Result{Text: "비교할 매물을 두 개 이상 골라주세요. 예: \"1번 3번 비교해줘\""}, nil
	}
	if len(records) > 5 {
		records = records[:5]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d개 매물을 비교했어요.\n", len(records))
	for i, r := range records {
		fmt.Fprintf(&b, "%d번 %s · 평당 %s\n", i+1, r.Label(),
			listing.FormatPrice(int64(listing.PricePerPyeong(r))))
	}
	if avg, ok := listing.Average(records); ok {
		fmt.Fprintf(&b, "평균: 보증금 %s, 월세 %s, 면적 %.1f평",
			listing.FormatPrice(avg.Deposit), listing.FormatPrice(avg.MonthlyRent), avg.AreaPyeong)
	}
	text := strings.TrimRight(b.String(), "\n")

	if polished := narrate(ctx, p.chatModel,
		"부동산 비교 결과를 장단점 중심으로 두세 문장 요약한다. 수치는 그대로 쓴다.",
		text); polished != "" {
		text = polished + "\n" + text
	}
	return &task.Result{Text: text, Records: records}, nil
}
