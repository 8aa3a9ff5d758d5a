package reconciler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/robet-bot-poc/internal/chaina"
	"github.com/radieske/robet-bot-poc/internal/reconciler/repo"
)

// fakeStore guarda registros em memória na ordem de inserção
type fakeStore struct {
	order []string
	recs  map[string]*repo.BetRecord

	failSetMarketID bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: map[string]*repo.BetRecord{}}
}

func (s *fakeStore) add(tweetID, question string) *repo.BetRecord {
	r := &repo.BetRecord{TweetID: tweetID, Question: question, CreatedAt: time.Now()}
	s.recs[tweetID] = r
	s.order = append(s.order, tweetID)
	return r
}

func (s *fakeStore) ListUnnotified(ctx context.Context) ([]repo.BetRecord, error) {
	var out []repo.BetRecord
	for _, id := range s.order {
		if r := s.recs[id]; !r.Notified {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) SetMarketID(ctx context.Context, tweetID, marketID string) error {
	if s.failSetMarketID {
		return errors.New("store unavailable")
	}
	r := s.recs[tweetID]
	if r.MarketID.Valid {
		return repo.ErrStageAlreadySet
	}
	r.MarketID = sql.NullString{String: marketID, Valid: true}
	return nil
}

func (s *fakeStore) SetChainBResult(ctx context.Context, tweetID, chainBMarketID, chainBTxHash, shareURL string) error {
	r := s.recs[tweetID]
	if r.ChainBMarketID.Valid {
		return repo.ErrStageAlreadySet
	}
	r.ChainBMarketID = sql.NullString{String: chainBMarketID, Valid: true}
	r.ChainBTxHash = sql.NullString{String: chainBTxHash, Valid: true}
	r.ShareURL = sql.NullString{String: shareURL, Valid: true}
	return nil
}

func (s *fakeStore) MarkNotified(ctx context.Context, tweetID string) error {
	s.recs[tweetID].Notified = true
	return nil
}

type fakeChainA struct {
	calls int
	err   error
}

func (f *fakeChainA) CreateMarket(ctx context.Context, marketID, question string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "sig-" + marketID, nil
}

type fakeChainB struct {
	calls   int
	err     error
	endTime time.Time
}

func (f *fakeChainB) CreateMarket(ctx context.Context, description string, endTime time.Time) (string, string, error) {
	f.calls++
	f.endTime = endTime
	if f.err != nil {
		return "", "", f.err
	}
	return "42", "deadbeef", nil
}

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) Reply(ctx context.Context, rec *repo.BetRecord) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "post-1", nil
}

func newTestEngine(store *fakeStore, a *fakeChainA, b *fakeChainB, n *fakeNotifier) *Engine {
	return &Engine{
		Log:            zap.NewNop(),
		Store:          store,
		ChainA:         a,
		ChainB:         b,
		Notifier:       n,
		BlinkBaseURL:   "https://blinks.robet.bet/bid",
		MarketDuration: 7 * 24 * time.Hour,
		CallTimeout:    time.Second,
		NewMarketID:    func() string { return "a1b2c3" },
	}
}

func TestTickCreatesMarketOnChainA(t *testing.T) {
	store := newFakeStore()
	store.add("tw1", "Will it rain tomorrow?")
	chainA := &fakeChainA{}
	chainB := &fakeChainB{}

	e := newTestEngine(store, chainA, chainB, &fakeNotifier{})
	results := e.RunTick(context.Background())

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].From != StagePending || results[0].To != StageChainACreated {
		t.Errorf("transition = %s -> %s, want PENDING -> CHAIN_A_CREATED", results[0].From, results[0].To)
	}

	rec := store.recs["tw1"]
	if !rec.MarketID.Valid || rec.MarketID.String != "a1b2c3" {
		t.Errorf("marketID = %+v, want a1b2c3", rec.MarketID)
	}
	// no máximo um estágio por tick: chain B não pode ter sido chamada
	if chainB.calls != 0 {
		t.Errorf("chainB calls = %d, want 0", chainB.calls)
	}
	if rec.ChainBMarketID.Valid {
		t.Error("chainBMarketID set on the same tick as marketID")
	}
}

func TestTickChainBFailureLeavesRecordUntouched(t *testing.T) {
	store := newFakeStore()
	rec := store.add("tw1", "question")
	rec.MarketID = sql.NullString{String: "m1", Valid: true}

	chainB := &fakeChainB{err: errors.New("timeout")}
	e := newTestEngine(store, &fakeChainA{}, chainB, &fakeNotifier{})

	results := e.RunTick(context.Background())
	if results[0].Err == nil {
		t.Fatal("expected error result")
	}
	if results[0].To != StageChainACreated {
		t.Errorf("stage after failure = %s, want CHAIN_A_CREATED", results[0].To)
	}
	if rec.ChainBMarketID.Valid || rec.ShareURL.Valid {
		t.Error("chain B fields set despite gateway failure")
	}

	// segundo tick com o gateway saudável completa o estágio
	chainB.err = nil
	e.RunTick(context.Background())
	if !rec.ChainBMarketID.Valid || rec.ChainBMarketID.String != "42" {
		t.Errorf("chainBMarketID = %+v, want 42", rec.ChainBMarketID)
	}
	if want := "https://blinks.robet.bet/bid?marketId=m1"; rec.ShareURL.String != want {
		t.Errorf("shareURL = %q, want %q", rec.ShareURL.String, want)
	}
	if rec.Notified {
		t.Error("notified set before the notify stage ran")
	}
}

func TestHappyPathOverThreeTicks(t *testing.T) {
	store := newFakeStore()
	rec := store.add("tw1", "Will it rain tomorrow?")
	chainA := &fakeChainA{}
	chainB := &fakeChainB{}
	notifier := &fakeNotifier{}
	e := newTestEngine(store, chainA, chainB, notifier)
	ctx := context.Background()

	e.RunTick(ctx)
	if !rec.MarketID.Valid || rec.ChainBMarketID.Valid || rec.Notified {
		t.Fatalf("after tick 1: %+v, want only marketID set", rec)
	}

	e.RunTick(ctx)
	if !rec.ChainBMarketID.Valid || rec.Notified {
		t.Fatalf("after tick 2: %+v, want chain B set and not notified", rec)
	}

	results := e.RunTick(ctx)
	if !rec.Notified {
		t.Fatal("after tick 3: not notified")
	}
	if results[0].To != StageDone {
		t.Errorf("final stage = %s, want DONE", results[0].To)
	}

	if chainA.calls != 1 || chainB.calls != 1 || notifier.calls != 1 {
		t.Errorf("calls = A:%d B:%d notify:%d, want 1 each", chainA.calls, chainB.calls, notifier.calls)
	}

	// registro concluído sai do lote
	if res := e.RunTick(ctx); res != nil {
		t.Errorf("tick after DONE processed %d records, want 0", len(res))
	}
}

func TestChainBEndTimeUsesMarketDuration(t *testing.T) {
	store := newFakeStore()
	rec := store.add("tw1", "q")
	rec.MarketID = sql.NullString{String: "m1", Valid: true}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	chainB := &fakeChainB{}
	e := newTestEngine(store, &fakeChainA{}, chainB, &fakeNotifier{})
	e.Now = func() time.Time { return now }

	e.RunTick(context.Background())
	if want := now.Add(7 * 24 * time.Hour); !chainB.endTime.Equal(want) {
		t.Errorf("endTime = %v, want %v", chainB.endTime, want)
	}
}

func TestOneRecordFailureDoesNotAbortBatch(t *testing.T) {
	store := newFakeStore()
	r1 := store.add("tw1", "q1")
	r1.MarketID = sql.NullString{String: "m1", Valid: true}
	store.add("tw2", "q2")

	// chain B quebrada trava só tw1; tw2 ainda avança em chain A
	chainB := &fakeChainB{err: errors.New("rpc down")}
	e := newTestEngine(store, &fakeChainA{}, chainB, &fakeNotifier{})

	results := e.RunTick(context.Background())
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Err == nil {
		t.Error("tw1 should have failed")
	}
	if results[1].Err != nil {
		t.Errorf("tw2 err = %v, want nil", results[1].Err)
	}
	if !store.recs["tw2"].MarketID.Valid {
		t.Error("tw2 did not advance after tw1 failure")
	}
}

func TestMarketExistsIsTreatedAsSuccess(t *testing.T) {
	store := newFakeStore()
	rec := store.add("tw1", "q")
	chainA := &fakeChainA{err: fmt.Errorf("market a1b2c3: %w", chaina.ErrMarketExists)}

	e := newTestEngine(store, chainA, &fakeChainB{}, &fakeNotifier{})
	results := e.RunTick(context.Background())

	if results[0].Err != nil {
		t.Fatalf("err = %v, want success-and-persist", results[0].Err)
	}
	if !rec.MarketID.Valid {
		t.Error("marketID not persisted on already-exists")
	}
}

func TestPersistFailureKeepsRecordPending(t *testing.T) {
	store := newFakeStore()
	rec := store.add("tw1", "q")
	store.failSetMarketID = true

	e := newTestEngine(store, &fakeChainA{}, &fakeChainB{}, &fakeNotifier{})
	results := e.RunTick(context.Background())

	if results[0].Err == nil {
		t.Fatal("expected persist error to surface in the result")
	}
	if rec.MarketID.Valid {
		t.Error("marketID set despite persist failure")
	}

	// próximo tick com o store saudável completa o estágio
	store.failSetMarketID = false
	e.RunTick(context.Background())
	if !rec.MarketID.Valid {
		t.Error("record did not recover on the next tick")
	}
}

func TestNotifyFailureRetriesNextTick(t *testing.T) {
	store := newFakeStore()
	rec := store.add("tw1", "q")
	rec.MarketID = sql.NullString{String: "m1", Valid: true}
	rec.ChainBMarketID = sql.NullString{String: "42", Valid: true}
	rec.ChainBTxHash = sql.NullString{String: "hash", Valid: true}
	rec.ShareURL = sql.NullString{String: "https://blinks.robet.bet/bid?marketId=m1", Valid: true}

	notifier := &fakeNotifier{err: errors.New("rate limited")}
	e := newTestEngine(store, &fakeChainA{}, &fakeChainB{}, notifier)

	e.RunTick(context.Background())
	if rec.Notified {
		t.Fatal("notified set despite reply failure")
	}

	notifier.err = nil
	e.RunTick(context.Background())
	if !rec.Notified {
		t.Error("record not notified after retry tick")
	}
	if notifier.calls != 2 {
		t.Errorf("notifier calls = %d, want 2", notifier.calls)
	}
}
