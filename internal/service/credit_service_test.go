package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/LogoForge/internal/models"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		free, amount, wantFree, wantSub int
	}{
		{free: 0, amount: 1, wantFree: 0, wantSub: 1},
		{free: 3, amount: 1, wantFree: 1, wantSub: 0},
		{free: 2, amount: 3, wantFree: 2, wantSub: 1},
		{free: 5, amount: 5, wantFree: 5, wantSub: 0},
	}
	for _, c := range cases {
		f, s := split(c.free, c.amount)
		assert.Equal(t, c.wantFree, f, "free=%d amount=%d", c.free, c.amount)
		assert.Equal(t, c.wantSub, s, "free=%d amount=%d", c.free, c.amount)
		assert.Equal(t, c.amount, f+s)
	}
}

func TestDeductFromSubscriptionWhenNoFreeCredits(t *testing.T) {
	db, mock := newMock(t)
	svc := NewCreditService(db, nil, nil)

	expectLockedBalance(mock, "user-1", 0, 2)
	mock.ExpectExec(`UPDATE subscriptions SET credits = credits - \?`).
		WithArgs(1, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bal, err := svc.Deduct(context.Background(), "user-1", 1)
	require.NoError(t, err)
	assert.Equal(t, models.Balance{Free: 0, Subscription: 1, HasPlan: true}, bal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductSpansBothBalances(t *testing.T) {
	db, mock := newMock(t)
	svc := NewCreditService(db, nil, nil)

	expectLockedBalance(mock, "user-1", 2, 10)
	mock.ExpectExec(`UPDATE users SET free_credit = free_credit - \?`).
		WithArgs(2, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE subscriptions SET credits = credits - \?`).
		WithArgs(1, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bal, err := svc.Deduct(context.Background(), "user-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Free)
	assert.Equal(t, 9, bal.Subscription)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductInsufficientLeavesBalancesUnchanged(t *testing.T) {
	db, mock := newMock(t)
	svc := NewCreditService(db, nil, nil)

	expectLockedBalance(mock, "user-1", 2, -1)
	mock.ExpectRollback()

	_, err := svc.Deduct(context.Background(), "user-1", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientCredits))
	assert.EqualError(t, err, "insufficient credits. required: 3, available: 2")

	var ice *InsufficientCreditsError
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, 3, ice.Required)
	assert.Equal(t, 2, ice.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductNonPositiveAmountChargesOne(t *testing.T) {
	db, mock := newMock(t)
	svc := NewCreditService(db, nil, nil)

	expectLockedBalance(mock, "user-1", 1, -1)
	mock.ExpectExec(`UPDATE users SET free_credit = free_credit - \?`).
		WithArgs(1, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bal, err := svc.Deduct(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductWithRollsBackWhenCallbackFails(t *testing.T) {
	db, mock := newMock(t)
	svc := NewCreditService(db, nil, nil)

	expectLockedBalance(mock, "user-1", 3, -1)
	mock.ExpectExec(`UPDATE users SET free_credit = free_credit - \?`).
		WithArgs(1, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("insert failed")
	_, err := svc.DeductWith(context.Background(), "user-1", 1, func(tx *sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductUnknownUser(t *testing.T) {
	db, mock := newMock(t)
	svc := NewCreditService(db, nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT free_credit FROM users WHERE id = \? FOR UPDATE`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.Deduct(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAvailable(t *testing.T) {
	db, mock := newMock(t)
	svc := NewCreditService(db, nil, nil)

	expectBalance(mock, "user-1", 3, 60)
	bal, err := svc.Available(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 63, bal.Total())
	assert.True(t, bal.HasPlan)

	expectBalance(mock, "user-2", 1, -1)
	bal, err = svc.Available(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Equal(t, 1, bal.Total())
	assert.False(t, bal.HasPlan)
}

func TestPlanCatalog(t *testing.T) {
	c := PlanCatalog{BasicProductID: "pro_b", StandardProductID: "pro_s", PremiumProductID: "pro_p"}
	assert.Equal(t, models.PlanBasic, c.Plan("pro_b"))
	assert.Equal(t, models.PlanStandard, c.Plan("pro_s"))
	assert.Equal(t, models.PlanPremium, c.Plan("pro_p"))
	assert.Equal(t, models.PlanUnknown, c.Plan("pro_x"))
	assert.Equal(t, models.PlanUnknown, PlanCatalog{}.Plan(""))

	assert.Equal(t, []int{60, 180, 300, 0}, []int{
		InitialCredits(models.PlanBasic), InitialCredits(models.PlanStandard),
		InitialCredits(models.PlanPremium), InitialCredits(models.PlanUnknown),
	})
	assert.Equal(t, []int{25, 80, 125, 0}, []int{
		TopUpCredits(models.PlanBasic), TopUpCredits(models.PlanStandard),
		TopUpCredits(models.PlanPremium), TopUpCredits(models.PlanUnknown),
	})
}

func TestGenerateUsername(t *testing.T) {
	name, err := GenerateUsername("adalovelace@example.com")
	require.NoError(t, err)
	assert.Regexp(t, `^adal_[A-Za-z0-9]{6}$`, name)

	name, err = GenerateUsername("bo@example.com")
	require.NoError(t, err)
	assert.Regexp(t, `^bo_[A-Za-z0-9]{6}$`, name)
}
