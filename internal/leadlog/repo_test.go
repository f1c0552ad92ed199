package leadlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadgate/internal/datanorm"
	"github.com/ignite/leadgate/internal/lead"
)

func newMock(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepo(db), mock
}

func TestLogAccepted(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	sub := lead.Submission{
		Phone:    "8 916 123-45-67",
		Email:    "Ivan@Example.ru",
		ClientIP: "198.51.100.20",
		UTM:      lead.UTM{Source: "yandex", Campaign: "spring"},
	}
	out := lead.Accept("lead-1", 20, []string{"utm_format"}, nil, &lead.PhoneInfo{QC: 0}, 42*time.Millisecond)

	mock.ExpectExec(`INSERT INTO lead_outcomes`).
		WithArgs(
			sqlmock.AnyArg(), "lead-1", true, "", 20, sqlmock.AnyArg(), sqlmock.AnyArg(),
			datanorm.HashIdentity("79161234567"), datanorm.HashIdentity("ivan@example.ru"), "198.51.100.20",
			"yandex:spring:none", "yandex", "", "spring", "",
			int64(0), int64(42), at,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Log(context.Background(), sub, out, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRejectedWithoutPhoneInfo(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	out := lead.Reject(*lead.NewReason(lead.CodeHoneypotFilled), 0, nil, nil, nil, time.Millisecond)
	mock.ExpectExec(`INSERT INTO lead_outcomes`).
		WithArgs(
			sqlmock.AnyArg(), nil, false, "honeypot_filled", 0, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), "", "", "direct:none:none", "", "", "", "",
			nil, int64(1), at,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Log(context.Background(), lead.Submission{Phone: "79161234567"}, out, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO lead_outcomes`).WillReturnError(errors.New("relation does not exist"))

	err := repo.Log(context.Background(), lead.Submission{}, lead.Outcome{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert lead outcome")
}

func TestDailyStats(t *testing.T) {
	repo, mock := newMock(t)
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count", "accepted", "rejected"}).AddRow(40, 31, 9))
	mock.ExpectQuery(`SELECT reason, COUNT\(\*\)`).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"reason", "count"}).
			AddRow("duplicate_phone", 6).
			AddRow("invalid_phone_qc_2", 3))

	stats, err := repo.DailyStats(context.Background(), time.Date(2026, 5, 1, 17, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2026-05-01", stats.Date)
	assert.Equal(t, int64(40), stats.Total)
	assert.Equal(t, int64(31), stats.Accepted)
	assert.Equal(t, int64(9), stats.Rejected)
	assert.Equal(t, map[string]int64{"duplicate_phone": 6, "invalid_phone_qc_2": 3}, stats.ByReason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyStatsWithoutRejections(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "accepted", "rejected"}).AddRow(5, 5, 0))

	stats, err := repo.DailyStats(context.Background(), time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Accepted)
	assert.Empty(t, stats.ByReason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPhoneHistory(t *testing.T) {
	repo, mock := newMock(t)
	last := time.Date(2026, 5, 3, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM lead_outcomes`).
		WithArgs(datanorm.HashIdentity("79161234567")).
		WillReturnRows(sqlmock.NewRows([]string{"count", "accepted", "max", "reason"}).AddRow(3, 1, last, "duplicate_phone"))

	h, err := repo.PhoneHistory(context.Background(), "79161234567")
	require.NoError(t, err)
	assert.Equal(t, int64(3), h.Total)
	assert.Equal(t, int64(1), h.Accepted)
	require.NotNil(t, h.LastSeen)
	assert.Equal(t, last, *h.LastSeen)
	assert.Equal(t, "duplicate_phone", h.LastError)

	mock.ExpectQuery(`FROM lead_outcomes`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "accepted", "max", "reason"}).AddRow(0, 0, nil, nil))
	h, err = repo.PhoneHistory(context.Background(), "70000000000")
	require.NoError(t, err)
	assert.Nil(t, h.LastSeen)
	assert.Empty(t, h.LastError)
}
