package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"label-matcher/core/database"
	"label-matcher/feature/labels/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestGorm_SQLite(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		db, err := database.Connect(database.Config{
			Driver: "sqlite",
			Name:   filepath.Join(t.TempDir(), "state.db"),
		})
		require.NoError(t, err)

		s := NewGorm(db)
		require.NoError(t, s.Migrate(context.Background()))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func setupMockDB(t *testing.T) (*Gorm, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return NewGorm(gormDB), mock
}

func TestGorm_TransitionLabelIsConditionalUpdate(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `labels` SET `order_id`=?,`state`=?,`updated_at`=? WHERE object_key = ? AND state = ?")).
		WithArgs("A-1001", "matched", sqlmock.AnyArg(), "incoming/label_A-1001.pdf", "incoming").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.TransitionLabel(context.Background(), "incoming/label_A-1001.pdf", models.LabelIncoming, models.LabelMatched, Fields{OrderID: Ptr("A-1001")})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGorm_SameStateTransitionCountsMatchedRow(t *testing.T) {
	s, mock := setupMockDB(t)
	key := "incoming/label_A-1001.pdf"

	// With clientFoundRows the server reports the matched row even when only
	// the claim deadline moves.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `labels` SET `claim_deadline`=?,`state`=?,`updated_at`=? WHERE object_key = ? AND state = ?")).
		WithArgs(sqlmock.AnyArg(), "processing", sqlmock.AnyArg(), key, "processing").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deadline := time.Now().Add(time.Minute)
	err := s.TransitionLabel(context.Background(), key, models.LabelProcessing, models.LabelProcessing, Fields{ClaimDeadline: &deadline})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGorm_TransitionLabelConflict(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectExec("UPDATE `labels` SET").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"object_key", "state"}).AddRow("incoming/a.pdf", "matched")
	mock.ExpectQuery("SELECT \\* FROM `labels` WHERE object_key = \\?").WillReturnRows(rows)

	err := s.TransitionLabel(context.Background(), "incoming/a.pdf", models.LabelIncoming, models.LabelMatched, Fields{})
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGorm_TransitionOrderNotFound(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET `status`=?,`updated_at`=? WHERE id = ? AND status = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\?").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := s.TransitionOrder(context.Background(), "nope", models.OrderOpen, models.OrderMatched, Fields{})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGorm_StaleTransitionSkipsDatabase(t *testing.T) {
	s, mock := setupMockDB(t)

	err := s.TransitionLabel(context.Background(), "incoming/a.pdf", models.LabelProcessed, models.LabelIncoming, Fields{})
	assert.ErrorIs(t, err, models.ErrStaleTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGorm_DatabaseErrorsAreTransient(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT \\* FROM `labels` WHERE state = \\?").WillReturnError(errors.New("connection reset"))

	_, _, err := s.ListLabels(context.Background(), models.LabelIncoming, "", 10)
	assert.ErrorIs(t, err, models.ErrTransientIO)
	assert.True(t, models.IsTransient(err))
}

func TestGorm_ListOrdersKeyset(t *testing.T) {
	s, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "status"}).
		AddRow("A-2", "open").
		AddRow("A-3", "open").
		AddRow("A-4", "open")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `orders` WHERE status = ? AND id > ? ORDER BY id LIMIT ?")).
		WithArgs("open", "A-1", 3).
		WillReturnRows(rows)

	orders, next, err := s.ListOrders(context.Background(), models.OrderOpen, "A-1", 2)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, "A-3", next)
	assert.NoError(t, mock.ExpectationsWereMet())
}
