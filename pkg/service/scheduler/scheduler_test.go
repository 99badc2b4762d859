package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/amirasaad/accrual/pkg/domain/events"
	"github.com/amirasaad/accrual/pkg/service/admission"
	"github.com/amirasaad/accrual/pkg/service/scheduler"
	"github.com/amirasaad/accrual/pkg/testutils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SchedulerTestSuite struct {
	suite.Suite
	env       *testutils.Env
	admission *admission.Service
	svc       *scheduler.Service
	ctx       context.Context
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) SetupTest() {
	s.env = testutils.NewEnv(s.T())
	s.admission = admission.New(s.env.Deps)
	s.svc = scheduler.New(s.env.Deps)
	s.ctx = context.Background()
}

func (s *SchedulerTestSuite) admit(id uint64, seed []byte) *account.Account {
	acc, err := s.admission.Admit(s.ctx, admission.Request{
		Caller:        testutils.Relay,
		AccountID:     id,
		Seed:          seed,
		FundingAmount: decimal.NewFromInt(1),
	})
	s.Require().NoError(err)
	return acc
}

func (s *SchedulerTestSuite) advance(id uint64, round int) (*account.Account, account.PriceSample, error) {
	return s.svc.AdvanceRound(s.ctx, testutils.Keeper, id, round)
}

func (s *SchedulerTestSuite) TestAdvance_AfterOneInterval() {
	acc := s.admit(1, []byte("seed-1"))
	s.env.Venue.SetPrice(acc.Category.Symbol(), decimal.RequireFromString("0.008"))

	s.env.Clock.Advance(acc.IntervalLength)
	_, _, err := s.advance(1, 1)
	s.ErrorIs(err, domain.ErrTiming, "readiness is strict at the boundary")

	s.env.Clock.Advance(time.Second)
	got, sample, err := s.advance(1, 1)
	s.Require().NoError(err)
	s.Equal(2, got.Round())
	s.Equal(2, sample.Round)
	s.True(sample.Price.Equal(decimal.RequireFromString("0.008")))

	published := s.env.Bus.Published()
	s.Require().Len(published, 2)
	s.Equal(events.EventTypeRoundAdvanced.String(), published[1].Type())
}

func (s *SchedulerTestSuite) TestAdvance_ReplayIsStale() {
	acc := s.admit(1, []byte("seed-1"))
	s.env.Clock.Advance(acc.IntervalLength + time.Second)

	_, _, err := s.advance(1, 1)
	s.Require().NoError(err)
	_, _, err = s.advance(1, 1)
	s.ErrorIs(err, domain.ErrStaleRound)

	repo, _ := s.env.Deps.Uow.AccountRepository()
	stored, err := repo.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(2, stored.Round())
}

func (s *SchedulerTestSuite) TestAdvance_TwoIntervalsElapsedAdvancesOne() {
	acc := s.admit(1, []byte("seed-1"))
	s.env.Clock.Advance(2*acc.IntervalLength + time.Second)

	_, _, err := s.advance(1, 2)
	s.ErrorIs(err, domain.ErrStaleRound)

	got, _, err := s.advance(1, 1)
	s.Require().NoError(err)
	s.Equal(2, got.Round())

	got, _, err = s.advance(1, 2)
	s.Require().NoError(err)
	s.Equal(3, got.Round())

	_, _, err = s.advance(1, 3)
	s.ErrorIs(err, domain.ErrTiming)
}

func (s *SchedulerTestSuite) TestAdvance_StaleCheckedBeforeTiming() {
	s.admit(1, []byte("seed-1"))
	_, _, err := s.advance(1, 5)
	s.ErrorIs(err, domain.ErrStaleRound)
}

func (s *SchedulerTestSuite) TestAdvance_RequiresAutomationAgent() {
	acc := s.admit(1, []byte("seed-1"))
	s.env.Clock.Advance(acc.IntervalLength + time.Second)

	_, _, err := s.svc.AdvanceRound(s.ctx, testutils.Relay, 1, 1)
	s.ErrorIs(err, domain.ErrAuthorization)
}

func (s *SchedulerTestSuite) TestAdvance_UnknownAccount() {
	_, _, err := s.advance(9, 0)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *SchedulerTestSuite) TestAdvance_CompletesAtTwelve() {
	acc := s.admit(1, []byte("seed-1"))
	s.env.Clock.Advance(time.Second)
	for round := 1; round < account.MaxRounds; round++ {
		s.env.Clock.Advance(acc.IntervalLength)
		_, _, err := s.advance(1, round)
		s.Require().NoError(err, "round %d", round)
	}

	s.env.Clock.Advance(365 * 24 * time.Hour)
	ready, err := s.svc.IsReady(s.ctx, 1)
	s.Require().NoError(err)
	s.False(ready)
	_, _, err = s.advance(1, account.MaxRounds)
	s.ErrorIs(err, domain.ErrTiming)

	next, err := s.svc.FindNextReady(s.ctx)
	s.Require().NoError(err)
	s.Nil(next)
}

func (s *SchedulerTestSuite) TestFindNextReady() {
	next, err := s.svc.FindNextReady(s.ctx)
	s.Require().NoError(err)
	s.Nil(next, "nothing admitted")

	var accounts []*account.Account
	for id := uint64(5); id < 9; id++ {
		accounts = append(accounts, s.admit(id, []byte{byte(id), 1, 2, 3}))
	}
	next, err = s.svc.FindNextReady(s.ctx)
	s.Require().NoError(err)
	s.Nil(next, "round 1 needs one interval")

	var longest time.Duration
	for _, a := range accounts {
		if a.IntervalLength > longest {
			longest = a.IntervalLength
		}
	}
	s.env.Clock.Advance(longest + time.Second)

	next, err = s.svc.FindNextReady(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(next)
	s.Equal(uint64(5), next.ID)

	_, _, err = s.advance(5, 1)
	s.Require().NoError(err)
	next, err = s.svc.FindNextReady(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(next)
	if next.ID == 5 {
		s.Equal(2, next.Round(), "account 5 may already be ready for round 2")
	} else {
		s.Equal(uint64(6), next.ID)
	}
}

func TestIsReady_UnknownAccount(t *testing.T) {
	env := testutils.NewEnv(t)
	_, err := scheduler.New(env.Deps).IsReady(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
