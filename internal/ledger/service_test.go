package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/mutation"
	"github.com/mmynk/splitledger/internal/storage/memory"
	"github.com/mmynk/splitledger/internal/storage/storetest"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

type fixture struct {
	svc   *Service
	store *memory.Store
	group *models.Group
	pub   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	group := storetest.NewGroup(t, store)

	// dave was a member and left
	ctx := context.Background()
	require.NoError(t, store.AddMember(ctx, group.ID, models.Member{UserID: "dave", Role: models.RoleMember}))
	require.NoError(t, store.LeaveGroup(ctx, group.ID, "dave", time.Now()))

	cfg := DefaultConfig()
	cfg.Retry.BaseDelay = 0
	pub := &recordingPublisher{}
	return &fixture{svc: New(store, pub, cfg), store: store, group: group, pub: pub}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func assertCode(t *testing.T, err error, want Code) *Error {
	t.Helper()
	require.Error(t, err)
	var le *Error
	require.True(t, errors.As(err, &le), "expected *ledger.Error, got %T: %v", err, err)
	assert.Equal(t, want, le.Code, le.Error())
	return le
}

func assertBalance(t *testing.T, b *Balances, currency, user, want string) {
	t.Helper()
	got := b.Net[currency][user]
	assert.True(t, d(want).Equal(got), "%s %s: want %s, got %s", currency, user, want, got)
}

func (f *fixture) equalExpense(payer string, amount string, participants ...string) ExpenseDraft {
	return ExpenseDraft{
		GroupID:      f.group.ID,
		Amount:       d(amount),
		Currency:     "USD",
		PayerID:      payer,
		SplitType:    models.SplitEqual,
		Participants: participants,
		Description:  "Dinner",
	}
}

func (f *fixture) settlement(payer, payee, amount string) SettlementDraft {
	return SettlementDraft{
		GroupID:  f.group.ID,
		PayerID:  payer,
		PayeeID:  payee,
		Amount:   d(amount),
		Currency: "USD",
	}
}

func TestScenarios_ExpensesAndSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 100 USD paid by alice, split with bob
	e1, err := f.svc.RecordExpense(ctx, f.equalExpense("alice", "100", "alice", "bob"), "alice")
	require.NoError(t, err)
	assert.Equal(t, models.Version(1), e1.Version)
	assert.Equal(t, "alice", e1.CreatedBy)

	b, err := f.svc.GetGroupBalances(ctx, f.group.ID, "bob")
	require.NoError(t, err)
	assertBalance(t, b, "USD", "alice", "50")
	assertBalance(t, b, "USD", "bob", "-50")
	require.Len(t, b.Debts["USD"], 1)
	assert.Equal(t, "bob", b.Debts["USD"][0].From)
	assert.Equal(t, "alice", b.Debts["USD"][0].To)

	// 60 USD paid by bob, split with alice
	_, err = f.svc.RecordExpense(ctx, f.equalExpense("bob", "60", "alice", "bob"), "bob")
	require.NoError(t, err)

	b, err = f.svc.GetGroupBalances(ctx, f.group.ID, "alice")
	require.NoError(t, err)
	assertBalance(t, b, "USD", "alice", "20")
	assertBalance(t, b, "USD", "bob", "-20")

	// bob pays alice back
	st, err := f.svc.RecordSettlement(ctx, f.settlement("bob", "alice", "20"), "bob")
	require.NoError(t, err)
	assert.Equal(t, models.Version(1), st.Version)

	b, err = f.svc.GetGroupBalances(ctx, f.group.ID, "alice")
	require.NoError(t, err)
	assertBalance(t, b, "USD", "alice", "0")
	assertBalance(t, b, "USD", "bob", "0")
	assert.Empty(t, b.Debts["USD"])

	assert.Equal(t, []events.Kind{events.ExpenseRecorded, events.ExpenseRecorded, events.SettlementRecorded}, f.pub.kinds())
}

func TestRecordExpense_NormalizesInput(t *testing.T) {
	f := newFixture(t)
	draft := f.equalExpense("alice", "10", "alice", "bob", "carol")
	draft.Currency = " usd "
	draft.OccurredOn = time.Date(2024, 3, 9, 18, 45, 0, 0, time.UTC)

	e, err := f.svc.RecordExpense(context.Background(), draft, "bob")
	require.NoError(t, err)
	assert.Equal(t, "USD", e.Currency)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), e.OccurredOn)
	require.Len(t, e.Splits, 3)
	assert.Equal(t, "3.34", e.Splits[0].Amount.StringFixed(2))
	assert.Equal(t, "3.33", e.Splits[1].Amount.StringFixed(2))
	assert.Equal(t, "3.33", e.Splits[2].Amount.StringFixed(2))
}

func TestRecordExpense_Rejects(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*ExpenseDraft)
		actor  string
		code   Code
		field  string
	}{
		{"zero amount", func(dr *ExpenseDraft) { dr.Amount = decimal.Zero }, "alice", CodeValidation, "amount"},
		{"negative amount", func(dr *ExpenseDraft) { dr.Amount = d("-5") }, "alice", CodeValidation, "amount"},
		{"above ceiling", func(dr *ExpenseDraft) { dr.Amount = d("10000000.01") }, "alice", CodeValidation, "amount"},
		{"too precise", func(dr *ExpenseDraft) { dr.Amount = d("10.001") }, "alice", CodeValidation, "amount"},
		{"yen has no cents", func(dr *ExpenseDraft) { dr.Currency = "JPY"; dr.Amount = d("10.5") }, "alice", CodeValidation, "amount"},
		{"unknown currency", func(dr *ExpenseDraft) { dr.Currency = "ZZZ" }, "alice", CodeValidation, "currency"},
		{"missing currency", func(dr *ExpenseDraft) { dr.Currency = "" }, "alice", CodeValidation, "currency"},
		{"missing group", func(dr *ExpenseDraft) { dr.GroupID = "" }, "alice", CodeValidation, "group_id"},
		{"unknown split type", func(dr *ExpenseDraft) { dr.SplitType = "shares" }, "alice", CodeValidation, "split_type"},
		{"no participants", func(dr *ExpenseDraft) { dr.Participants = nil }, "alice", CodeValidation, "participants"},
		{"duplicate participants", func(dr *ExpenseDraft) { dr.Participants = []string{"alice", "alice"} }, "alice", CodeValidation, "participants"},
		{"blank participant", func(dr *ExpenseDraft) { dr.Participants = []string{"alice", ""} }, "alice", CodeValidation, "participants[1]"},
		{"equal split with shares", func(dr *ExpenseDraft) {
			dr.Shares = []models.Share{{UserID: "alice", Amount: d("10")}}
		}, "alice", CodeValidation, "shares"},
		{"exact shares off by more than a cent", func(dr *ExpenseDraft) {
			dr.SplitType = models.SplitExact
			dr.Shares = []models.Share{{UserID: "alice", Amount: d("5")}, {UserID: "bob", Amount: d("4.98")}}
		}, "alice", CodeValidation, "shares"},
		{"payer left the group", func(dr *ExpenseDraft) { dr.PayerID = "dave" }, "alice", CodeNotAMember, "payer_id"},
		{"participant never joined", func(dr *ExpenseDraft) { dr.Participants = []string{"alice", "erin"} }, "alice", CodeNotAMember, "participants[1]"},
		{"actor not a member", func(dr *ExpenseDraft) {}, "erin", CodeNotAMember, "actor"},
		{"actor not involved", func(dr *ExpenseDraft) {}, "carol", CodeNotAuthorized, "actor"},
		{"anonymous actor", func(dr *ExpenseDraft) {}, "", CodeNotAuthorized, "actor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := f.equalExpense("alice", "10", "alice", "bob")
			tt.mutate(&draft)
			_, err := f.svc.RecordExpense(context.Background(), draft, tt.actor)
			le := assertCode(t, err, tt.code)
			assert.Equal(t, tt.field, le.Field)
		})
	}

	expenses, err := f.svc.ListExpenses(context.Background(), f.group.ID, "alice", ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Empty(t, expenses, "rejected drafts must not be stored")
	assert.Empty(t, f.pub.kinds())
}

func TestRecordExpense_ExactSplitAbsorbsResidue(t *testing.T) {
	f := newFixture(t)
	draft := f.equalExpense("alice", "10", "alice", "bob")
	draft.SplitType = models.SplitExact
	draft.Shares = []models.Share{{UserID: "alice", Amount: d("5")}, {UserID: "bob", Amount: d("4.99")}}

	e, err := f.svc.RecordExpense(context.Background(), draft, "alice")
	require.NoError(t, err)
	assert.True(t, d("5.00").Equal(e.Splits[1].Amount), "last share absorbs the cent")
}

func TestAmendExpense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.RecordExpense(ctx, f.equalExpense("alice", "100", "alice", "bob"), "alice")
	require.NoError(t, err)

	t.Run("amount rebuilds splits", func(t *testing.T) {
		got, err := f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{Amount: ptr(d("75"))}, "alice")
		require.NoError(t, err)
		assert.Equal(t, models.Version(2), got.Version)
		assert.True(t, d("37.5").Equal(got.Splits[0].Amount))
		assert.True(t, d("37.5").Equal(got.Splits[1].Amount))
	})

	t.Run("description keeps splits", func(t *testing.T) {
		got, err := f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{Description: ptr("Brunch")}, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Brunch", got.Description)
		assert.True(t, d("75").Equal(got.Amount))
		assert.Equal(t, models.Version(3), got.Version)
	})

	t.Run("switch to percentage", func(t *testing.T) {
		got, err := f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{
			SplitType:    ptr(models.SplitPercentage),
			Participants: []string{"alice", "bob", "carol"},
			Shares: []models.Share{
				{UserID: "alice", Percentage: d("50")},
				{UserID: "bob", Percentage: d("25")},
				{UserID: "carol", Percentage: d("25")},
			},
		}, "alice")
		require.NoError(t, err)
		require.Len(t, got.Splits, 3)
		assert.True(t, d("37.5").Equal(got.Splits[0].Amount))
		assert.True(t, d("18.75").Equal(got.Splits[2].Amount))
	})

	t.Run("amount that breaks exact shares", func(t *testing.T) {
		_, err := f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{
			SplitType: ptr(models.SplitExact),
			Shares:    []models.Share{{UserID: "alice", Amount: d("1")}},
		}, "alice")
		assertCode(t, err, CodeValidation)
	})

	t.Run("non-creator", func(t *testing.T) {
		_, err := f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{Description: ptr("mine")}, "bob")
		assertCode(t, err, CodeNotCreator)
	})

	t.Run("new participant must be a member", func(t *testing.T) {
		_, err := f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{
			SplitType:    ptr(models.SplitEqual),
			Participants: []string{"alice", "dave"},
		}, "alice")
		le := assertCode(t, err, CodeNotAMember)
		assert.Equal(t, "participants[1]", le.Field)
	})

	t.Run("empty update", func(t *testing.T) {
		_, err := f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{}, "alice")
		assertCode(t, err, CodeValidation)
	})

	t.Run("empty participant list", func(t *testing.T) {
		_, err := f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{Participants: []string{}}, "alice")
		le := assertCode(t, err, CodeValidation)
		assert.Equal(t, "participants", le.Field)
	})

	t.Run("unknown expense", func(t *testing.T) {
		_, err := f.svc.AmendExpense(ctx, "missing", ExpenseUpdate{Description: ptr("x")}, "alice")
		assertCode(t, err, CodeNotFound)
	})

	stored, err := f.svc.GetExpense(ctx, e.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.SplitPercentage, stored.SplitType, "failed amendments leave the record untouched")
	assert.Equal(t, models.Version(4), stored.Version)
}

func TestAmendExpense_StaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.RecordExpense(ctx, f.equalExpense("alice", "100", "alice", "bob"), "alice")
	require.NoError(t, err)
	v1 := e.Version

	_, err = f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{Amount: ptr(d("75")), ExpectedVersion: &v1}, "alice")
	require.NoError(t, err)

	_, err = f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{Amount: ptr(d("200")), ExpectedVersion: &v1}, "alice")
	assertCode(t, err, CodeConcurrentUpdate)

	stored, err := f.svc.GetExpense(ctx, e.ID, "alice")
	require.NoError(t, err)
	assert.True(t, d("75").Equal(stored.Amount))
	assert.Equal(t, models.Version(2), stored.Version)
}

func TestAmendExpense_ConcurrentWritersOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		e, err := f.svc.RecordExpense(ctx, f.equalExpense("alice", "100", "alice", "bob"), "alice")
		require.NoError(t, err)
		v1 := e.Version

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, amount := range []string{"75", "200"} {
			wg.Add(1)
			go func(i int, amount string) {
				defer wg.Done()
				_, errs[i] = f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{Amount: ptr(d(amount)), ExpectedVersion: &v1}, "alice")
			}(i, amount)
		}
		wg.Wait()

		var wins, conflicts int
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case CodeOf(err) == CodeConcurrentUpdate:
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, wins, "round %d", round)
		assert.Equal(t, 1, conflicts, "round %d", round)
	}
}

func TestRetireExpense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	byBob, err := f.svc.RecordExpense(ctx, f.equalExpense("bob", "30", "bob", "carol"), "bob")
	require.NoError(t, err)
	byCarol, err := f.svc.RecordExpense(ctx, f.equalExpense("carol", "12", "bob", "carol"), "carol")
	require.NoError(t, err)

	_, err = f.svc.RetireExpense(ctx, byBob.ID, "carol", nil)
	assertCode(t, err, CodeNotCreator)

	retired, err := f.svc.RetireExpense(ctx, byBob.ID, "bob", nil)
	require.NoError(t, err)
	assert.True(t, retired.IsDeleted())
	assert.Equal(t, "bob", retired.DeletedBy)
	assert.Equal(t, models.Version(2), retired.Version)

	// Admin may retire someone else's expense
	_, err = f.svc.RetireExpense(ctx, byCarol.ID, "alice", nil)
	require.NoError(t, err)

	t.Run("no resurrection", func(t *testing.T) {
		_, err := f.svc.RetireExpense(ctx, byBob.ID, "bob", nil)
		assertCode(t, err, CodeAlreadyDeleted)

		v := retired.Version
		_, err = f.svc.RetireExpense(ctx, byBob.ID, "bob", &v)
		assertCode(t, err, CodeAlreadyDeleted)

		_, err = f.svc.AmendExpense(ctx, byBob.ID, ExpenseUpdate{Description: ptr("back")}, "bob")
		assertCode(t, err, CodeAlreadyDeleted)
	})

	t.Run("still readable", func(t *testing.T) {
		got, err := f.svc.GetExpense(ctx, byBob.ID, "carol")
		require.NoError(t, err)
		assert.True(t, got.IsDeleted())

		active, err := f.svc.ListExpenses(ctx, f.group.ID, "carol", ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, active)

		all, err := f.svc.ListExpenses(ctx, f.group.ID, "carol", ListOptions{IncludeDeleted: true})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	b, err := f.svc.ComputeGroupBalances(ctx, f.group.ID)
	require.NoError(t, err)
	assert.Empty(t, b.Net, "retired expenses do not count")
}

func TestRetireExpense_StaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.RecordExpense(ctx, f.equalExpense("alice", "100", "alice", "bob"), "alice")
	require.NoError(t, err)
	stale := e.Version

	_, err = f.svc.AmendExpense(ctx, e.ID, ExpenseUpdate{Description: ptr("Lunch")}, "alice")
	require.NoError(t, err)

	_, err = f.svc.RetireExpense(ctx, e.ID, "alice", &stale)
	assertCode(t, err, CodeConcurrentUpdate)
}

func TestRecordSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		draft SettlementDraft
		actor string
		code  Code
		field string
	}{
		{"payer records", f.settlement("bob", "alice", "20"), "bob", "", ""},
		{"payee records", f.settlement("bob", "alice", "5"), "alice", "", ""},
		{"admin records for others", f.settlement("bob", "carol", "5"), "alice", "", ""},
		{"former member as payee", f.settlement("bob", "dave", "5"), "bob", "", ""},
		{"third party", f.settlement("bob", "alice", "5"), "carol", CodeNotAuthorized, "actor"},
		{"payee never joined", f.settlement("bob", "erin", "5"), "bob", CodeNotAMember, "payee_id"},
		{"paying yourself", f.settlement("bob", "bob", "5"), "bob", CodeValidation, "payee_id"},
		{"zero amount", f.settlement("bob", "alice", "0"), "bob", CodeValidation, "amount"},
		{"former member as actor", f.settlement("dave", "alice", "5"), "dave", CodeNotAMember, "actor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := f.svc.RecordSettlement(ctx, tt.draft, tt.actor)
			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.actor, st.CreatedBy)
				assert.False(t, st.SettledOn.IsZero())
				return
			}
			le := assertCode(t, err, tt.code)
			assert.Equal(t, tt.field, le.Field)
		})
	}
}

func TestAmendAndRetireSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.RecordSettlement(ctx, f.settlement("bob", "alice", "20"), "bob")
	require.NoError(t, err)

	_, err = f.svc.AmendSettlement(ctx, st.ID, SettlementUpdate{Note: ptr("venmo")}, "carol")
	assertCode(t, err, CodeNotCreator)

	_, err = f.svc.AmendSettlement(ctx, st.ID, SettlementUpdate{PayeeID: ptr("bob")}, "bob")
	le := assertCode(t, err, CodeValidation)
	assert.Equal(t, "payee_id", le.Field)

	_, err = f.svc.AmendSettlement(ctx, st.ID, SettlementUpdate{Currency: ptr("JPY")}, "bob")
	assert.NoError(t, err, "20 is representable in yen")

	got, err := f.svc.AmendSettlement(ctx, st.ID, SettlementUpdate{Amount: ptr(d("25")), Currency: ptr("usd")}, "bob")
	require.NoError(t, err)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, models.Version(3), got.Version)

	// Group admin may amend too
	got, err = f.svc.AmendSettlement(ctx, st.ID, SettlementUpdate{Note: ptr("checked")}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "checked", got.Note)

	_, err = f.svc.AmendSettlement(ctx, st.ID, SettlementUpdate{}, "bob")
	assertCode(t, err, CodeValidation)

	_, err = f.svc.RetireSettlement(ctx, st.ID, "carol", nil)
	assertCode(t, err, CodeNotCreator)

	_, err = f.svc.RetireSettlement(ctx, st.ID, "bob", nil)
	require.NoError(t, err)

	_, err = f.svc.RetireSettlement(ctx, st.ID, "bob", nil)
	assertCode(t, err, CodeAlreadyDeleted)
	_, err = f.svc.AmendSettlement(ctx, st.ID, SettlementUpdate{Note: ptr("again")}, "bob")
	assertCode(t, err, CodeAlreadyDeleted)

	active, err := f.svc.ListSettlements(ctx, f.group.ID, "alice", ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = f.svc.GetSettlement(ctx, "missing", "alice")
	assertCode(t, err, CodeNotFound)

	assert.Equal(t, []events.Kind{
		events.SettlementRecorded,
		events.SettlementAmended,
		events.SettlementAmended,
		events.SettlementAmended,
		events.SettlementRetired,
	}, f.pub.kinds())
}

func TestGetGroupBalances_RequiresMembership(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetGroupBalances(context.Background(), f.group.ID, "dave")
	assertCode(t, err, CodeNotAMember)

	_, err = f.svc.ListExpenses(context.Background(), f.group.ID, "erin", ListOptions{})
	assertCode(t, err, CodeNotAMember)

	b, err := f.svc.GetGroupBalances(context.Background(), f.group.ID, "carol")
	require.NoError(t, err)
	assert.Empty(t, b.Net)
	assert.Empty(t, b.Currencies())
}

func TestWrites_RetryContention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.InjectContention(2)
	_, err := f.svc.RecordExpense(ctx, f.equalExpense("alice", "10", "alice", "bob"), "alice")
	require.NoError(t, err, "two transient failures fit in three attempts")

	f.store.InjectContention(3)
	_, err = f.svc.RecordExpense(ctx, f.equalExpense("alice", "10", "alice", "bob"), "alice")
	assertCode(t, err, CodeService)
	assert.ErrorIs(t, err, mutation.ErrRetriesExhausted)
}

func TestWrites_SurvivePublishFailure(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("redis down")

	e, err := f.svc.RecordExpense(context.Background(), f.equalExpense("alice", "10", "alice", "bob"), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Len(t, f.pub.kinds(), 1)
}

func TestNew_Defaults(t *testing.T) {
	svc := New(memory.New(), nil, Config{})
	assert.IsType(t, events.LogPublisher{}, svc.publisher)
	assert.True(t, DefaultConfig().MaxAmount.Equal(svc.validate.maxAmount))
}
