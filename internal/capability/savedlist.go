package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yoonhw/jibsa/internal/listing"
	"github.com/yoonhw/jibsa/internal/savedlist"
	"github.com/yoonhw/jibsa/internal/task"
)

// SavedListProvider is a thin adapter over the persistent saved-list store.
// The utterance selects the sub-operation: view, add or remove.
type SavedListProvider struct {
	store    *savedlist.Store
	listings *listing.Store
}

// NewSavedListProvider wires the persistent store and the listing store
// used to re-materialize saved ids.
func NewSavedListProvider(store *savedlist.Store, listings *listing.Store) *SavedListProvider {
	return &SavedListProvider{store: store, listings: listings}
}

func (p *SavedListProvider) Capability() task.Capability {
	return task.CapSavedList
}

// Execute dispatches on the utterance's saved-list verb. Operations without
// an actor id answer with a login prompt instead of failing the task.
func (p *SavedListProvider) Execute(ctx context.Context, t *task.Task) (*task.Result, error) {
	query := t.Query()
	actorID := t.ActorID()

	var result *task.Result
	var err error
	switch {
	case containsAny(query, "삭제", "빼", "지워", "제거"):
		result, err = p.remove(ctx, actorID, t.ContextRecords())
	case containsAny(query, "추가", "저장", "찜", "넣어", "담아"):
		result, err = p.add(ctx, actorID, t.ContextRecords())
	default:
		result, err = p.view(ctx, actorID)
	}
	if errors.Is(err, savedlist.ErrNotLoggedIn) {
		return &task.Result{Text: "관심 목록은 로그인 후에 사용할 수 있어요."}, nil
	}
	return result, err
}

func (p *SavedListProvider) add(ctx context.Context, actorID string, targets []listing.Record) (*task.Result, error) {
	if len(targets) == 0 {
		return &task.Result{Text: "추가할 매물을 찾지 못했어요. 검색 결과의 번호로 알려주세요."}, nil
	}
	var added, dup []string
	for _, r := range targets {
		ok, err := p.store.Add(ctx, actorID, r.ID)
		if err != nil {
			return nil, fmt.Errorf("saved list add: %w", err)
		}
		if ok {
			added = append(added, r.AptName)
		} else {
			dup = append(dup, r.AptName)
		}
	}
	var parts []string
	if len(added) > 0 {
		parts = append(parts, fmt.Sprintf("%s을(를) 관심 목록에 추가했어요.", strings.Join(added, ", ")))
	}
	if len(dup) > 0 {
		parts = append(parts, fmt.Sprintf("%s은(는) 이미 저장되어 있어요.", strings.Join(dup, ", ")))
	}
	return &task.Result{Text: strings.Join(parts, " ")}, nil
}

func (p *SavedListProvider) remove(ctx context.Context, actorID string, targets []listing.Record) (*task.Result, error) {
	if len(targets) == 0 {
		return &task.Result{Text: "삭제할 매물을 찾지 못했어요. 관심 목록을 보신 뒤 번호로 알려주세요."}, nil
	}
	var removed, missing []string
	for _, r := range targets {
		ok, err := p.store.Remove(ctx, actorID, r.ID)
		if err != nil {
			return nil, fmt.Errorf("saved list remove: %w", err)
		}
		if ok {
			removed = append(removed, r.AptName)
		} else {
			missing = append(missing, r.AptName)
		}
	}
	var parts []string
	if len(removed) > 0 {
		parts = append(parts, fmt.Sprintf("%s을(를) 관심 목록에서 삭제했어요.", strings.Join(removed, ", ")))
	}
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("%s은(는) 목록에 없었어요.", strings.Join(missing, ", ")))
	}
	return &task.Result{Text: strings.Join(parts, " ")}, nil
}

func (p *SavedListProvider) view(ctx context.Context, actorID string) (*task.Result, error) {
	ids, err := p.store.List(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &task.Result{Text: "관심 목록이 비어 있어요."}, nil
	}
	var records []listing.Record
	var b strings.Builder
	fmt.Fprintf(&b, "관심 목록에 %d건이 있어요.\n", len(ids))
	for _, id := range ids {
		r, ok := p.listings.ByID(id)
		if !ok {
			// listing left the corpus since it was saved
			continue
		}
		records = append(records, r.WithRank(len(records)+1))
		fmt.Fprintf(&b, "%d번 %s\n", len(records), r.Label())
	}
	return &task.Result{Text: strings.TrimRight(b.String(), "\n"), Records: records}, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
