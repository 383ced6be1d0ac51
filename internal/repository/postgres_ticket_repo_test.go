package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"
)

// spyDBTX は発行されたSQLと引数を記録するDBTXフェイク。
// クエリが契約どおりのロック句・ガード句を含むことを検証する。
type spyDBTX struct {
	query string
	args  []interface{}

	execResult sql.Result
	execErr    error
	queryErr   error
}

func (s *spyDBTX) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	s.query = query
	s.args = args
	return s.execResult, s.execErr
}

func (s *spyDBTX) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	s.query = query
	s.args = args
	return nil, s.queryErr
}

func (s *spyDBTX) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	s.query = query
	s.args = args
	return nil
}

// fakeResult は更新件数を固定で返すsql.Resultフェイク。
type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

// PostgresTicketRepoはTicketRepositoryインターフェースを満たすことを検証
func TestPostgresTicketRepo_ImplementsInterface(t *testing.T) {
	var _ TicketRepository = (*PostgresTicketRepo)(nil)
}

// NEWきっぷのスキャンが行ロックと未使用ガードを伴うことを検証
func TestPostgresTicketRepo_ListNewForUpdate_LocksCandidateRows(t *testing.T) {
	spy := &spyDBTX{queryErr: errors.New("stop after capture")}
	repo := NewPostgresTicketRepo(nil)

	_, err := repo.ListNewForUpdate(context.Background(), spy, "identity-id-1")
	if err == nil {
		t.Fatal("クエリ失敗時はエラーを返すべき")
	}

	if !strings.Contains(spy.query, "FOR UPDATE") {
		t.Errorf("候補行はFOR UPDATEでロックされるべき: %s", spy.query)
	}
	if !strings.Contains(spy.query, "status = 'NEW'") {
		t.Errorf("NEWきっぷのみをスキャンすべき: %s", spy.query)
	}
	// 定期券優先、同種別内は購入時刻昇順の評価順契約
	if !strings.Contains(spy.query, "ORDER BY kind ASC, purchase_time ASC") {
		t.Errorf("候補の評価順が契約と異なる: %s", spy.query)
	}
	if len(spy.args) != 1 || spy.args[0] != "identity-id-1" {
		t.Errorf("利用者IDで絞り込むべき: args=%v", spy.args)
	}
}

// 使用済み遷移のUPDATEがNEW行のみを対象にすることを検証
func TestPostgresTicketRepo_MarkUsed_GuardsStatusNew(t *testing.T) {
	spy := &spyDBTX{execResult: fakeResult{rows: 1}}
	repo := NewPostgresTicketRepo(nil)

	if err := repo.MarkUsed(context.Background(), spy, "ticket-id-1"); err != nil {
		t.Fatalf("MarkUsed がエラーを返した: %v", err)
	}

	if !strings.Contains(spy.query, "status = 'NEW'") {
		t.Errorf("WHERE句でNEW行のみを対象にすべき: %s", spy.query)
	}
	if !strings.Contains(spy.query, "SET status = 'USED'") {
		t.Errorf("USEDへの遷移であるべき: %s", spy.query)
	}
}

// 既に使用済みのきっぷ（更新件数0）はエラーになることを検証
func TestPostgresTicketRepo_MarkUsed_AlreadyUsed_ReturnsError(t *testing.T) {
	spy := &spyDBTX{execResult: fakeResult{rows: 0}}
	repo := NewPostgresTicketRepo(nil)

	err := repo.MarkUsed(context.Background(), spy, "ticket-id-1")
	if err == nil {
		t.Fatal("更新件数0の場合はエラーを返すべき（単回使用の保証）")
	}
	if !strings.Contains(err.Error(), "ticket-id-1") {
		t.Errorf("エラーメッセージにきっぷIDを含むべき: %v", err)
	}
}

// 定期券の有効判定がNEWのmonthlyのみを数えることを検証
func TestPostgresTicketRepo_HasActiveMonthly_CountsOnlyNewMonthly(t *testing.T) {
	spy := &spyDBTX{}
	repo := NewPostgresTicketRepo(nil)

	// フェイクはsql.Rowを作れないためScanはpanicする。
	// クエリの記録後にpanicするので、発行されたSQLだけを検証する。
	func() {
		defer func() { _ = recover() }()
		_, _ = repo.HasActiveMonthly(context.Background(), spy, "identity-id-1", 30, time.Now())
	}()

	if !strings.Contains(spy.query, "kind = 'monthly'") {
		t.Errorf("monthlyのみを数えるべき: %s", spy.query)
	}
	if !strings.Contains(spy.query, "status = 'NEW'") {
		t.Errorf("NEWのみを数えるべき: %s", spy.query)
	}
}
