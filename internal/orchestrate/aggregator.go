package orchestrate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yoonhw/jibsa/internal/listing"
	"github.com/yoonhw/jibsa/internal/task"
)

// Result kinds for the outbound message.
const (
	KindSearchResult = "search_result"
	KindChat         = "chat"
)

// Response is the single outbound message for one request.
type Response struct {
	Text           string           `json:"text"`
	ResultKind     string           `json:"result_kind"`
	Records        []listing.Record `json:"listing_records,omitempty"`
	Capabilities   []string         `json:"capabilities_used"`
	TasksCompleted int              `json:"tasks_completed"`
}

// Combine merges terminal tasks into one response. Tasks sort by fixed
// capability precedence; each contributes a labeled text section. The
// listing payload comes from the first task in precedence order that
// produced records; later record lists are intentionally not merged so a
// narrowed subset never replaces the full result shown to the caller.
func Combine(tasks []*task.Task) Response {
	ordered := make([]*task.Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Capability.Precedence() < ordered[j].Capability.Precedence()
	})

	var resp Response
	var sections []string
	seen := map[task.Capability]bool{}
	recordsSet := false

	for _, t := range ordered {
		switch t.Status {
		case task.StatusCompleted:
			if !seen[t.Capability] {
				seen[t.Capability] = true
				resp.Capabilities = append(resp.Capabilities, string(t.Capability))
			}
			resp.TasksCompleted++
			if t.Result == nil {
				continue
			}
			if t.Result.Text != "" {
				sections = append(sections, section(t.Capability, t.Result.Text))
			}
			if !recordsSet && len(t.Result.Records) > 0 {
				resp.Records = t.Result.Records
				recordsSet = true
			}
		case task.StatusFailed:
			sections = append(sections, section(t.Capability,
				fmt.Sprintf("%s 처리 중 문제가 있어 이 부분은 건너뛰었어요.", t.Capability.Label())))
		}
	}

	if len(sections) == 0 {
		sections = append(sections, "요청을 처리하지 못했어요. 다시 한번 말씀해 주세요.")
	}
	resp.Text = strings.Join(sections, "\n\n")
	if recordsSet {
		resp.ResultKind = KindSearchResult
	} else {
		resp.ResultKind = KindChat
	}
	return resp
}

// section renders one capability's text under its heading. A lone
// conversational reply reads better without a heading, which the caller
// gets by joining a single unlabeled section.
func section(c task.Capability, text string) string {
	if c == task.CapConversational {
		return text
	}
	return fmt.Sprintf("[%s]\n%s", c.Label(), text)
}
