package capability

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// narrate asks the chat model to phrase a section of the response. Any
// failure returns "" and the caller keeps its deterministic text; model
// polish is strictly optional.
func narrate(ctx context.Context, chatModel model.ToolCallingChatModel, system, user string) string {
	if chatModel == nil {
		return ""
	}
	resp, err := chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		slog.Debug("capability: narration failed", "error", err)
		return ""
	}
	return strings.TrimSpace(resp.Content)
}
