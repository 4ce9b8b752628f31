package capability

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yoonhw/jibsa/internal/history"
	"github.com/yoonhw/jibsa/internal/listing"
	"github.com/yoonhw/jibsa/internal/savedlist"
	"github.com/yoonhw/jibsa/internal/search"
	"github.com/yoonhw/jibsa/internal/task"
)

func newListingStore(t *testing.T, records ...listing.Record) *listing.Store {
	t.Helper()
	s := listing.NewStore()
	for _, r := range records {
		if err := s.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func newTask(c task.Capability, query, actorID string, records []listing.Record) *task.Task {
	payload := map[string]any{
		task.PayloadQuery:   query,
		task.PayloadActorID: actorID,
	}
	if records != nil {
		payload[task.PayloadRecords] = records
	}
	return task.New(c, "", payload, task.PriorityMedium)
}

func TestRetrievalProvider(t *testing.T) {
	store := newListingStore(t,
		listing.Record{ID: "a", Gu: "서초구", Dong: "방배동", AptName: "서리풀", AreaPyeong: 21, Deposit: 42000, RentType: listing.LeaseJeonse},
		listing.Record{ID: "b", Gu: "강남구", Dong: "역삼동", AptName: "래미안", AreaPyeong: 24, Deposit: 50000, RentType: listing.LeaseJeonse},
	)
	hist := history.NewStore()
	p := NewRetrievalProvider(search.NewEngine(store, nil, nil), search.NewExtractor(nil), hist)

	res, err := p.Execute(context.Background(), newTask(task.CapRetrieval, "서초구 전세 찾아줘", "actor-1", nil))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].ID != "a" {
		t.Fatalf("records = %v", res.Records)
	}
	if !strings.Contains(res.Text, "1건") || !strings.Contains(res.Text, "서리풀") {
		t.Errorf("text = %q", res.Text)
	}

	// Successful searches land in the context store.
	latest, ok := hist.Latest()
	if !ok || len(latest.Records) != 1 || latest.ActorID != "actor-1" {
		t.Errorf("history entry = %+v, %v", latest, ok)
	}
}

func TestRetrievalProviderNoMatchIsAnswer(t *testing.T) {
	store := newListingStore(t,
		listing.Record{ID: "a", Gu: "서초구", RentType: listing.LeaseJeonse},
	)
	hist := history.NewStore()
	p := NewRetrievalProvider(search.NewEngine(store, nil, nil), search.NewExtractor(nil), hist)

	res, err := p.Execute(context.Background(), newTask(task.CapRetrieval, "강남구 전세 찾아줘", "", nil))
	if err != nil {
		t.Fatalf("no-match must not fail the task: %v", err)
	}
	if !strings.Contains(res.Text, "찾지 못했") {
		t.Errorf("text = %q", res.Text)
	}
	if hist.Len() != 0 {
		t.Error("empty searches must not pollute history")
	}
}

func TestRetrievalProviderMergesBaseQuery(t *testing.T) {
	store := newListingStore(t,
		listing.Record{ID: "seocho", Gu: "서초구", Dong: "방배동", AptName: "서리풀", Deposit: 28000, RentType: listing.LeaseJeonse},
		listing.Record{ID: "gangnam", Gu: "강남구", Dong: "역삼동", AptName: "래미안", Deposit: 28000, RentType: listing.LeaseJeonse},
	)
	hist := history.NewStore()
	p := NewRetrievalProvider(search.NewEngine(store, nil, nil), search.NewExtractor(nil), hist)

	// Location-only follow-up: the lease type comes from the base query,
	// the location from the new utterance.
	tk := newTask(task.CapRetrieval, "강남구는?", "", nil)
	tk.Payload[task.PayloadBaseQuery] = "서초구 전세 보증금 3억"

	res, err := p.Execute(context.Background(), tk)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].ID != "gangnam" {
		t.Fatalf("records = %v", res.Records)
	}
}

func TestComparisonProviderNeedsTwo(t *testing.T) {
	p := NewComparisonProvider(nil, history.NewStore())
	res, err := p.Execute(context.Background(),
		newTask(task.CapComparison, "비교해줘", "", []listing.Record{{ID: "only"}}))
	if err != nil {
		t.Fatalf("short comparison must answer, not fail: %v", err)
	}
	if !strings.Contains(res.Text, "두 개 이상") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestComparisonProviderIncludesBaseline(t *testing.T) {
	p := NewComparisonProvider(nil, history.NewStore())
	res, err := p.Execute(context.Background(), newTask(task.CapComparison, "비교해줘", "", []listing.Record{
		{ID: "a", Gu: "서초구", Dong: "방배동", AptName: "서리풀", AreaPyeong: 20, Deposit: 40000, RentType: listing.LeaseJeonse},
		{ID: "b", Gu: "서초구", Dong: "서초동", AptName: "래미안", AreaPyeong: 30, Deposit: 60000, RentType: listing.LeaseJeonse},
	}))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(res.Text, "평균: 보증금 5억") {
		t.Errorf("baseline missing: %q", res.Text)
	}
	if !strings.Contains(res.Text, "평당") {
		t.Errorf("per-pyeong missing: %q", res.Text)
	}
}

func TestComparisonProviderFallsBackToLatestSearch(t *testing.T) {
	hist := history.NewStore()
	hist.Append("", "서초구 전세", []listing.Record{
		{ID: "a", Gu: "서초구", Dong: "방배동", AptName: "서리풀", AreaPyeong: 20, Deposit: 40000, RentType: listing.LeaseJeonse},
		{ID: "b", Gu: "서초구", Dong: "서초동", AptName: "래미안", AreaPyeong: 30, Deposit: 60000, RentType: listing.LeaseJeonse},
	})
	p := NewComparisonProvider(nil, hist)

	// No records in the payload: a predecessor wrote them into history.
	res, err := p.Execute(context.Background(), newTask(task.CapComparison, "비교해줘", "", nil))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(res.Records) != 2 {
		t.Errorf("records = %d, want 2", len(res.Records))
	}
	if !strings.Contains(res.Text, "평균") {
		t.Errorf("baseline missing: %q", res.Text)
	}
}

func TestRecommendationProviderFamilyBand(t *testing.T) {
	hist := history.NewStore()
	records := []listing.Record{
		{ID: "small", AptName: "소형", AreaPyeong: 10, DistanceToStation: 200},
		{ID: "mid", AptName: "중형", AreaPyeong: 18, DistanceToStation: 400},
		{ID: "big", AptName: "대형", AreaPyeong: 35, DistanceToStation: 100},
	}
	p := NewRecommendationProvider(nil, hist)

	// 3인 가구: 17~25평.
	res, err := p.Execute(context.Background(), newTask(task.CapRecommendation, "3인 가족한테 추천해줘", "", records))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].ID != "mid" {
		t.Fatalf("records = %v", res.Records)
	}
	if !strings.Contains(res.Text, "17~25평") {
		t.Errorf("criteria missing: %q", res.Text)
	}
}

func TestRecommendationProviderStationFilter(t *testing.T) {
	hist := history.NewStore()
	hist.Append("", "서초구 전세", []listing.Record{
		{ID: "near", AptName: "역앞", AreaPyeong: 20, DistanceToStation: 240},
		{ID: "far", AptName: "역먼", AreaPyeong: 20, DistanceToStation: 900},
	})
	p := NewRecommendationProvider(nil, hist)

	res, err := p.Execute(context.Background(), newTask(task.CapRecommendation, "역세권으로 추천해줘", "", nil))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].ID != "near" {
		t.Fatalf("records = %v", res.Records)
	}
}

func TestRecommendationProviderWithoutCandidates(t *testing.T) {
	p := NewRecommendationProvider(nil, history.NewStore())
	res, err := p.Execute(context.Background(), newTask(task.CapRecommendation, "추천해줘", "", nil))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(res.Text, "먼저") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestAnalysisProviderStats(t *testing.T) {
	hist := history.NewStore()
	p := NewAnalysisProvider(nil, hist)

	res, err := p.Execute(context.Background(), newTask(task.CapAnalysis, "어때?", "", []listing.Record{
		{ID: "a", Deposit: 40000, AreaPyeong: 20, RentType: listing.LeaseJeonse, DistanceToStation: 200},
		{ID: "b", Deposit: 10000, MonthlyRent: 100, AreaPyeong: 20, RentType: listing.LeaseWolse, DistanceToStation: 900},
	}))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"2건", "평균 보증금 2억 5000만원", "전세 1건 / 월세 1건", "역세권·준역세권 1건"} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("text %q missing %q", res.Text, want)
		}
	}
}

func TestConversationalProvider(t *testing.T) {
	p := NewConversationalProvider(nil)

	// A preset payload response wins.
	tk := newTask(task.CapConversational, "전세 찾아줘", "", nil)
	tk.Payload[task.PayloadResponse] = "어느 지역인가요?"
	res, err := p.Execute(context.Background(), tk)
	if err != nil || res.Text != "어느 지역인가요?" {
		t.Fatalf("preset reply: %q, %v", res.Text, err)
	}

	// Without a model the canned fallback answers.
	res, err = p.Execute(context.Background(), newTask(task.CapConversational, "안녕", "", nil))
	if err != nil || res.Text == "" {
		t.Fatalf("fallback reply: %q, %v", res.Text, err)
	}
}

func TestSavedListProvider(t *testing.T) {
	listings := newListingStore(t,
		listing.Record{ID: "a", Gu: "서초구", AptName: "서리풀", AreaPyeong: 21, Deposit: 42000, RentType: listing.LeaseJeonse},
	)
	store, err := savedlist.Open(filepath.Join(t.TempDir(), "saved.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	p := NewSavedListProvider(store, listings)

	target := []listing.Record{{ID: "a", AptName: "서리풀"}}

	// Add, then duplicate add.
	res, err := p.Execute(context.Background(), newTask(task.CapSavedList, "1번 찜해줘", "actor-1", target))
	if err != nil || !strings.Contains(res.Text, "추가했어요") {
		t.Fatalf("add: %q, %v", res.Text, err)
	}
	res, err = p.Execute(context.Background(), newTask(task.CapSavedList, "1번 찜해줘", "actor-1", target))
	if err != nil || !strings.Contains(res.Text, "이미 저장") {
		t.Fatalf("dup add: %q, %v", res.Text, err)
	}

	// View re-materializes records from the listing store.
	res, err = p.Execute(context.Background(), newTask(task.CapSavedList, "관심 목록 보여줘", "actor-1", nil))
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].Gu != "서초구" {
		t.Errorf("view records = %v", res.Records)
	}

	// Remove.
	res, err = p.Execute(context.Background(), newTask(task.CapSavedList, "1번 빼줘", "actor-1", target))
	if err != nil || !strings.Contains(res.Text, "삭제했어요") {
		t.Fatalf("remove: %q, %v", res.Text, err)
	}
}

func TestSavedListProviderRequiresLogin(t *testing.T) {
	listings := newListingStore(t)
	store, err := savedlist.Open(filepath.Join(t.TempDir(), "saved.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	p := NewSavedListProvider(store, listings)

	res, err := p.Execute(context.Background(), newTask(task.CapSavedList, "관심 목록 보여줘", "", nil))
	if err != nil {
		t.Fatalf("anonymous view must answer, not fail: %v", err)
	}
	if !strings.Contains(res.Text, "로그인") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	p := NewConversationalProvider(nil)
	if _, err := NewRegistry(p, p); err == nil {
		t.Fatal("duplicate capability accepted")
	}

	r, err := NewRegistry(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Get(task.CapConversational); !ok {
		t.Error("registered provider not found")
	}
	if _, ok := r.Get(task.CapRetrieval); ok {
		t.Error("unregistered capability found")
	}
}
