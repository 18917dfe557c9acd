package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/querypilot/querypilot/internal/query"
)

func TestExecuteReturnsRowsInOrder(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM students ORDER BY id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("student1")).
			AddRow(int64(2), "student2"))

	result, err := NewExecutor(db).Execute(context.Background(), "SELECT id, name FROM students ORDER BY id;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(result.Columns, []string{"id", "name"}) {
		t.Fatalf("Columns = %v", result.Columns)
	}
	want := [][]any{{int64(1), "student1"}, {int64(2), "student2"}}
	if !reflect.DeepEqual(result.Rows, want) {
		t.Fatalf("Rows = %#v", result.Rows)
	}
	assertSQLMock(t, mock)
}

func TestExecuteScalarShapesToValue(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(10)))

	result, err := NewExecutor(db).Execute(context.Background(), "SELECT COUNT(*) FROM students")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := query.Shape(result); got != int64(10) {
		t.Fatalf("Shape() = %#v", got)
	}
	assertSQLMock(t, mock)
}

func TestExecuteReturnsStoreErrorVerbatim(t *testing.T) {
	db, mock := newSQLMock(t)

	storeErr := errors.New("no such column: nickname")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT nickname FROM students")).WillReturnError(storeErr)

	_, err := NewExecutor(db).Execute(context.Background(), "SELECT nickname FROM students")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, storeErr) {
		t.Fatalf("error = %v, want store error", err)
	}
	if err.Error() != "no such column: nickname" {
		t.Fatalf("error = %q, want the store message unchanged", err.Error())
	}
	assertSQLMock(t, mock)
}

func TestExecuteReportsRowError(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow(int64(1)).
			RowError(0, errors.New("disk I/O error")))

	_, err := NewExecutor(db).Execute(context.Background(), "SELECT id FROM students")
	if err == nil || !strings.Contains(err.Error(), "disk I/O error") {
		t.Fatalf("error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestExecuteRejectsEmptyStatement(t *testing.T) {
	db, mock := newSQLMock(t)

	if _, err := NewExecutor(db).Execute(context.Background(), " ; "); err == nil {
		t.Fatal("expected error for empty statement")
	}
	assertSQLMock(t, mock)
}

func TestExecuteRequiresDatabase(t *testing.T) {
	if _, err := (&Executor{}).Execute(context.Background(), "SELECT 1"); err == nil {
		t.Fatal("expected error without database")
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations were not met: %v", err)
	}
}
