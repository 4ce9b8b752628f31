package capability

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"github.com/yoonhw/jibsa/internal/task"
)

const fallbackReply = "부동산 매물 검색을 도와드려요. 지역과 조건을 말씀해 주시면 찾아드릴게요. 예: \"서초구 전세 3억 이하\""

// ConversationalProvider answers everything no other capability covers. A
// predefined response in the payload short-circuits the model call.
type ConversationalProvider struct {
	chatModel model.ToolCallingChatModel
}

// NewConversationalProvider creates the provider. chatModel may be nil.
func NewConversationalProvider(chatModel model.ToolCallingChatModel) *ConversationalProvider {
	return &ConversationalProvider{chatModel: chatModel}
}

func (p *ConversationalProvider) Capability() task.Capability {
	return task.CapConversational
}

func (p *ConversationalProvider) Execute(ctx context.Context, t *task.Task) (*task.Result, error) {
	if reply, _ := t.Payload[task.PayloadResponse].(string); reply != "" {
		return &task.Result{Text: reply}, nil
	}
	if text := narrate(ctx, p.chatModel,
		"부동산 비서로서 짧고 친근하게 답한다. 매물 검색으로 자연스럽게 안내한다.",
		t.Query()); text != "" {
		return &task.Result{Text: text}, nil
	}
	return &task.Result{Text: fallbackReply}, nil
}
