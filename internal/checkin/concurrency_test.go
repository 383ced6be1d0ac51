package checkin

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dyniee/metro-facecheck/internal/facematch"
	"github.com/Dyniee/metro-facecheck/internal/liveness"
	"github.com/Dyniee/metro-facecheck/internal/model"
	"github.com/Dyniee/metro-facecheck/internal/repository"
)

// gateStore は行ロックで直列化されるインメモリストア。
// identities行のFOR UPDATEロックをミューテックスで模し、
// コミットまで変更を他のトランザクションに公開しない。
type gateStore struct {
	identity *model.Identity

	// rowLock はidentities行のFOR UPDATE相当。LockByIDで獲得し、
	// Commit/Rollbackまで保持する。
	rowLock sync.Mutex

	mu       sync.Mutex
	tickets  []*model.Ticket
	checkins []*model.Checkin
}

func newGateStore(now time.Time) *gateStore {
	return &gateStore{
		identity: &model.Identity{ID: testIdentityID, Username: "binh"},
		tickets: []*model.Ticket{
			singleTicket("t1", testStation, "Ga Thủ Đức", now, nil),
		},
	}
}

// successCount はコミット済み監査レコード中の成功件数を返す。
func (s *gateStore) successCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.checkins {
		if c.Success {
			n++
		}
	}
	return n
}

type gateTx struct {
	dbtxStub
	store *gateStore

	locked          bool
	committed       bool
	pendingUsed     []string
	pendingCheckins []*model.Checkin
}

func (tx *gateTx) Commit() error {
	tx.store.mu.Lock()
	for _, id := range tx.pendingUsed {
		for _, ticket := range tx.store.tickets {
			if ticket.ID == id {
				ticket.Status = model.TicketStatusUsed
			}
		}
	}
	tx.store.checkins = append(tx.store.checkins, tx.pendingCheckins...)
	tx.store.mu.Unlock()
	tx.committed = true
	tx.releaseRowLock()
	return nil
}

func (tx *gateTx) Rollback() error {
	if !tx.committed {
		tx.pendingUsed = nil
		tx.pendingCheckins = nil
	}
	tx.releaseRowLock()
	return nil
}

func (tx *gateTx) releaseRowLock() {
	if tx.locked {
		tx.locked = false
		tx.store.rowLock.Unlock()
	}
}

type gateDB struct {
	dbtxStub
	store *gateStore
}

func (d *gateDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (repository.Tx, error) {
	return &gateTx{store: d.store}, nil
}

type gateIdentityRepo struct{ store *gateStore }

func (r *gateIdentityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	return r.store.identity, nil
}
func (r *gateIdentityRepo) Create(ctx context.Context, identity *model.Identity) error { return nil }
func (r *gateIdentityRepo) LockByID(ctx context.Context, tx repository.DBTX, id string) (*model.Identity, error) {
	gtx := tx.(*gateTx)
	gtx.store.rowLock.Lock()
	gtx.locked = true
	return r.store.identity, nil
}
func (r *gateIdentityRepo) UpdateBalance(ctx context.Context, tx repository.DBTX, id string, delta int64) error {
	return nil
}

type gateTicketRepo struct{ store *gateStore }

func (r *gateTicketRepo) Create(ctx context.Context, tx repository.DBTX, ticket *model.Ticket) error {
	return nil
}
func (r *gateTicketRepo) ListNewForUpdate(ctx context.Context, tx repository.DBTX, identityID string) ([]*model.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var candidates []*model.Ticket
	for _, ticket := range r.store.tickets {
		if ticket.Status == model.TicketStatusNew {
			candidates = append(candidates, ticket)
		}
	}
	return candidates, nil
}
func (r *gateTicketRepo) MarkUsed(ctx context.Context, tx repository.DBTX, ticketID string) error {
	gtx := tx.(*gateTx)
	gtx.pendingUsed = append(gtx.pendingUsed, ticketID)
	return nil
}
func (r *gateTicketRepo) HasActiveMonthly(ctx context.Context, tx repository.DBTX, identityID string, validDays int, now time.Time) (bool, error) {
	return false, nil
}
func (r *gateTicketRepo) ListByIdentity(ctx context.Context, identityID string) ([]*model.Ticket, error) {
	return r.store.tickets, nil
}

type gateCheckinRepo struct{ store *gateStore }

func (r *gateCheckinRepo) Insert(ctx context.Context, tx repository.DBTX, checkin *model.Checkin) error {
	if gtx, ok := tx.(*gateTx); ok {
		gtx.pendingCheckins = append(gtx.pendingCheckins, checkin)
		return nil
	}
	// トランザクション外の書き込みは即時コミット扱い
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.checkins = append(r.store.checkins, checkin)
	return nil
}
func (r *gateCheckinRepo) FindLastSuccess(ctx context.Context, tx repository.DBTX, identityID string) (*model.Checkin, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var last *model.Checkin
	for _, c := range r.store.checkins {
		if !c.Success || c.IdentityID == nil || *c.IdentityID != identityID {
			continue
		}
		if last == nil || c.CheckinTime.After(last.CheckinTime) {
			last = c
		}
	}
	return last, nil
}
func (r *gateCheckinRepo) ListByStation(ctx context.Context, station string, limit int) ([]*model.Checkin, error) {
	return nil, nil
}
func (r *gateCheckinRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	return 0, nil
}

// newSerializedService はgateStoreを共有する入場判定サービスを生成する。
func newSerializedService(t *testing.T, store *gateStore, now time.Time, cooldown time.Duration) *Service {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	cache := facematch.NewEnrollmentCache(&stubEncodingRepo{
		encodings: []*model.FaceEncoding{{
			ID:         "enc-1",
			IdentityID: testIdentityID,
			Encoding:   enrolledEncoding(0.1),
		}},
	}, logger)
	if err := cache.Reload(context.Background()); err != nil {
		t.Fatalf("キャッシュの初期化に失敗した: %v", err)
	}

	svc := NewService(
		&gateDB{store: store},
		&stubProvider{landmarks: aliveLandmarks(), encoding: enrolledEncoding(0.1)},
		liveness.NewEvaluator(0.22, 0.08),
		facematch.NewMatcher(cache, 0.5),
		&gateIdentityRepo{store: store},
		&gateTicketRepo{store: store},
		&gateCheckinRepo{store: store},
		nil, logger,
		Config{Cooldown: cooldown, DepartureGrace: 30 * time.Minute, MonthlyValidDays: 30},
	)
	svc.now = func() time.Time { return now }
	return svc
}

// runConcurrentCheckins は同一利用者の入場試行を2本同時に実行し、
// 許可・拒否に振り分けて返す。
func runConcurrentCheckins(svc *Service) (admitted, denied []model.Outcome) {
	outcomes := make(chan model.Outcome, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- svc.Checkin(context.Background(), testStation, "aW1n")
		}()
	}
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		if o.Admitted {
			admitted = append(admitted, o)
		} else {
			denied = append(denied, o)
		}
	}
	return admitted, denied
}

// 同一利用者の同時入場は利用者行ロックで直列化され、後から
// ロックを獲得した試行はコミット済みの成功レコードを観測して
// リプレイガードで拒否される。
func TestCheckin_ConcurrentAttempts_SecondHitsReplayGuard(t *testing.T) {
	now := time.Date(2026, 4, 15, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	store := newGateStore(now)
	svc := newSerializedService(t, store, now, 5*time.Minute)

	admitted, denied := runConcurrentCheckins(svc)

	if len(admitted) != 1 {
		t.Fatalf("入場許可はちょうど1件であるべき: got %d", len(admitted))
	}
	if admitted[0].Reason != model.ReasonSingleOK {
		t.Errorf("許可のReason = %s, want %s", admitted[0].Reason, model.ReasonSingleOK)
	}
	if len(denied) != 1 {
		t.Fatalf("拒否はちょうど1件であるべき: got %d", len(denied))
	}
	if denied[0].Reason != model.ReasonRapidCheckinDenied {
		t.Errorf("拒否のReason = %s, want %s", denied[0].Reason, model.ReasonRapidCheckinDenied)
	}

	// 片道きっぷはちょうど1回だけ消費される
	if store.tickets[0].Status != model.TicketStatusUsed {
		t.Errorf("きっぷt1は消費済みであるべき: status=%s", store.tickets[0].Status)
	}

	// 監査レコードは試行ごとに1件、成功はちょうど1件
	if len(store.checkins) != 2 {
		t.Fatalf("監査レコードは2件であるべき: got %d", len(store.checkins))
	}
	if n := store.successCount(); n != 1 {
		t.Errorf("成功の監査レコードはちょうど1件であるべき: got %d", n)
	}
}

// クールダウンを無効にしても二重消費は起きない。直列化された後続の
// 試行はNEWきっぷのFOR UPDATEスキャンで消費済みの行を見ず、
// きっぷなしとして拒否される。
func TestCheckin_ConcurrentAttempts_ConsumedTicketNotReusable(t *testing.T) {
	now := time.Date(2026, 4, 15, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	store := newGateStore(now)
	svc := newSerializedService(t, store, now, 0)

	admitted, denied := runConcurrentCheckins(svc)

	if len(admitted) != 1 {
		t.Fatalf("入場許可はちょうど1件であるべき: got %d", len(admitted))
	}
	if admitted[0].TicketID == nil || *admitted[0].TicketID != "t1" {
		t.Error("許可された試行はきっぷt1を消費すべき")
	}
	if len(denied) != 1 {
		t.Fatalf("拒否はちょうど1件であるべき: got %d", len(denied))
	}
	if denied[0].Reason != model.ReasonNoTicket {
		t.Errorf("拒否のReason = %s, want %s", denied[0].Reason, model.ReasonNoTicket)
	}

	if store.tickets[0].Status != model.TicketStatusUsed {
		t.Errorf("きっぷt1は消費済みであるべき: status=%s", store.tickets[0].Status)
	}
	if n := store.successCount(); n != 1 {
		t.Errorf("成功の監査レコードはちょうど1件であるべき: got %d", n)
	}
}
