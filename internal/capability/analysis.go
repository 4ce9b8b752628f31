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

// AnalysisProvider summarizes a record set: price level, area spread,
// station accessibility.
type AnalysisProvider struct {
	chatModel model.ToolCallingChatModel
	history   *history.Store
}

// NewAnalysisProvider creates the provider. chatModel may be nil.
func NewAnalysisProvider(chatModel model.ToolCallingChatModel, hist *history.Store) *AnalysisProvider {
	return &AnalysisProvider{chatModel: chatModel, history: hist}
}

func (p *AnalysisProvider) Capability() task.Capability {
	return task.CapAnalysis
}

// Execute analyzes the resolved context records, or the most recent search
// when a predecessor produced nothing.
func (p *AnalysisProvider) Execute(ctx context.Context, t *task.Task) (*task.Result, error) {
	records := t.ContextRecords()
	if len(records) == 0 {
		if latest, ok := p.history.Latest(); ok {
			records = latest.Records
		}
	}
	if len(records) == 0 {
		return &task.Result{Text: "분석할 매물이 아직 없어요. 먼저 검색 결과를 만들어 주세요."}, nil
	}

	avg, _ := listing.Average(records)
	nearStation := 0
	jeonse := 0
	for _, r := range records {
		if listing.StationClass(r.DistanceToStation) != "비역세권" {
			nearStation++
		}
		if r.EffectiveRentType() == listing.LeaseJeonse {
			jeonse++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "매물 %d건 분석 결과예요.\n", len(records))
	fmt.Fprintf(&b, "평균 보증금 %s, 평균 월세 %s, 평균 면적 %.1f평\n",
		listing.FormatPrice(avg.Deposit), listing.FormatPrice(avg.MonthlyRent), avg.AreaPyeong)
	fmt.Fprintf(&b, "전세 %d건 / 월세 %d건, 역세권·준역세권 %d건",
		jeonse, len(records)-jeonse, nearStation)
	text := b.String()

	if polished := narrate(ctx, p.chatModel,
		"부동산 매물 통계를 실거주자 관점에서 두세 문장으로 해석한다. 수치는 그대로 쓴다.",
		text); polished != "" {
		text = polished + "\n" + text
	}
	return &task.Result{Text: text}, nil
}
