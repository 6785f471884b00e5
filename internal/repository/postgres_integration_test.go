//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/mmeshcher/votos-system/internal/model"
)

var testDSN string

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("votos"),
		tcpostgres.WithUsername("votos"),
		tcpostgres.WithPassword("votos"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	testDSN, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		fmt.Fprintf(os.Stderr, "failed to get postgres connection string: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	_ = testcontainers.TerminateContainer(container)
	os.Exit(code)
}

func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()

	r, err := NewPostgresRepository(context.Background(), testDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func createTestMember(t *testing.T, r *PostgresRepository, role model.Role) *model.Member {
	t.Helper()

	m := &model.Member{
		ID:        uuid.New(),
		FirstName: "Miembro",
		LastName:  "Prueba",
		Cedula:    uuid.NewString()[:12],
		Role:      role,
		State:     model.MemberActive,
	}
	require.NoError(t, r.CreateMember(context.Background(), m))
	return m
}

func createTestPledge(t *testing.T, r *PostgresRepository, owner *model.Member, total int64) *model.Pledge {
	t.Helper()

	p := &model.Pledge{
		ID:         uuid.New(),
		MemberID:   owner.ID,
		Purpose:    "Construcción del templo",
		TotalCents: total,
		Deadline:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		State:      model.PledgeActive,
		CreatedBy:  owner.ID,
	}
	require.NoError(t, r.CreatePledge(context.Background(), p))
	return p
}

func pay(r *PostgresRepository, pledgeID, by uuid.UUID, cents int64) error {
	_, _, err := r.RecordPayment(context.Background(), &model.Payment{
		ID:          uuid.New(),
		PledgeID:    pledgeID,
		AmountCents: cents,
		PaidAt:      time.Now(),
		RecordedBy:  by,
	})
	return err
}

func paymentsSum(t *testing.T, r *PostgresRepository, pledgeID uuid.UUID) int64 {
	t.Helper()

	payments, err := r.GetPaymentsByPledge(context.Background(), pledgeID)
	require.NoError(t, err)
	var sum int64
	for _, p := range payments {
		sum += p.AmountCents
	}
	return sum
}

func TestRecordPayment_RejectsOverpayment(t *testing.T) {
	r := newTestRepository(t)
	owner := createTestMember(t, r, model.RoleUser)
	p := createTestPledge(t, r, owner, 100000)

	require.NoError(t, pay(r, p.ID, owner.ID, 80000))

	err := pay(r, p.ID, owner.ID, 30000)
	assert.ErrorIs(t, err, ErrOverpayment)

	paid, total, err := r.RecordPayment(context.Background(), &model.Payment{
		ID: uuid.New(), PledgeID: p.ID, AmountCents: 20000, PaidAt: time.Now(), RecordedBy: owner.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100000), paid)
	assert.Equal(t, int64(100000), total)

	got, err := r.GetPledge(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, got.PaidCents, paymentsSum(t, r, p.ID))
}

func TestRecordPayment_ConcurrentWritersNeverOvercollect(t *testing.T) {
	r := newTestRepository(t)
	owner := createTestMember(t, r, model.RoleUser)
	p := createTestPledge(t, r, owner, 50000)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	start := make(chan struct{})
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := pay(r, p.ID, owner.ID, 1750)
			switch {
			case err == nil:
				mu.Lock()
				accepted++
				mu.Unlock()
			case errors.Is(err, ErrOverpayment):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	got, err := r.GetPledge(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 28, accepted)
	assert.Equal(t, int64(28*1750), got.PaidCents)
	assert.Equal(t, got.PaidCents, paymentsSum(t, r, p.ID))
}

func TestRecordPayment_InactivePledge(t *testing.T) {
	r := newTestRepository(t)
	owner := createTestMember(t, r, model.RoleUser)
	p := createTestPledge(t, r, owner, 10000)

	require.NoError(t, r.TransitionPledge(context.Background(), p.ID, model.PledgeCancelled, owner.ID))

	assert.ErrorIs(t, pay(r, p.ID, owner.ID, 100), ErrPledgeNotActive)
	assert.ErrorIs(t, pay(r, uuid.New(), owner.ID, 100), ErrNotFound)
}

func TestTransitionPledge_CompleteRequiresFullAmount(t *testing.T) {
	r := newTestRepository(t)
	owner := createTestMember(t, r, model.RoleUser)
	p := createTestPledge(t, r, owner, 10000)
	ctx := context.Background()

	require.NoError(t, pay(r, p.ID, owner.ID, 9000))
	assert.ErrorIs(t, r.TransitionPledge(ctx, p.ID, model.PledgeCompleted, owner.ID), ErrPledgeNotFullyPaid)

	require.NoError(t, pay(r, p.ID, owner.ID, 1000))
	require.NoError(t, r.TransitionPledge(ctx, p.ID, model.PledgeCompleted, owner.ID))
	assert.ErrorIs(t, r.TransitionPledge(ctx, p.ID, model.PledgeCancelled, owner.ID), ErrPledgeNotActive)
	assert.ErrorIs(t, r.TransitionPledge(ctx, uuid.New(), model.PledgeCancelled, owner.ID), ErrNotFound)
}

func TestCreateMember_Uniqueness(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	email := "unico-" + uuid.NewString()[:8] + "@example.org"

	first := &model.Member{
		ID: uuid.New(), FirstName: "Ana", LastName: "Ruiz", Cedula: uuid.NewString()[:12],
		Email: &email, Role: model.RolePending, State: model.MemberActive,
	}
	require.NoError(t, r.CreateMember(ctx, first))

	sameCedula := *first
	sameCedula.ID = uuid.New()
	sameCedula.Email = nil
	assert.ErrorIs(t, r.CreateMember(ctx, &sameCedula), ErrCedulaExists)

	upper := "UNICO" + email[5:]
	sameEmail := &model.Member{
		ID: uuid.New(), FirstName: "Ana", LastName: "Ruiz", Cedula: uuid.NewString()[:12],
		Email: &upper, Role: model.RolePending, State: model.MemberActive,
	}
	assert.ErrorIs(t, r.CreateMember(ctx, sameEmail), ErrEmailExists)
}

func TestApproveMember_Idempotent(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	pending := createTestMember(t, r, model.RolePending)

	first, err := r.ApproveMember(ctx, pending.ID)
	require.NoError(t, err)
	second, err := r.ApproveMember(ctx, pending.ID)
	require.NoError(t, err)

	assert.Equal(t, model.RoleUser, first.Role)
	assert.Equal(t, first.Role, second.Role)
	assert.Equal(t, first.State, second.State)

	rejected, err := r.RejectMember(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MemberInactive, rejected.State)
	assert.Equal(t, model.RoleUser, rejected.Role)

	_, err = r.ApproveMember(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccounts(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	email := "cuenta-" + uuid.NewString()[:8] + "@example.org"

	a := &model.Account{ID: uuid.New(), Email: email, PasswordHash: []byte("hash")}
	require.NoError(t, r.CreateAccount(ctx, a))

	dup := &model.Account{ID: uuid.New(), Email: "CUENTA" + email[6:], PasswordHash: []byte("hash")}
	assert.ErrorIs(t, r.CreateAccount(ctx, dup), ErrAccountExists)

	got, err := r.GetAccountByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	require.NoError(t, r.DeleteAccount(ctx, a.ID))
	_, err = r.GetAccountByEmail(ctx, email)
	assert.ErrorIs(t, err, ErrNotFound)
}

func insertMember(t *testing.T, r *PostgresRepository, first, last string, role model.Role, state model.MemberState) *model.Member {
	t.Helper()

	m := &model.Member{
		ID:        uuid.New(),
		FirstName: first,
		LastName:  last,
		Cedula:    uuid.NewString()[:12],
		Role:      role,
		State:     state,
	}
	require.NoError(t, r.CreateMember(context.Background(), m))
	return m
}

func insertPledge(t *testing.T, r *PostgresRepository, owner *model.Member, purpose string, total int64, due string) *model.Pledge {
	t.Helper()

	deadline, err := time.Parse("2006-01-02", due)
	require.NoError(t, err)
	p := &model.Pledge{
		ID:         uuid.New(),
		MemberID:   owner.ID,
		Purpose:    purpose,
		TotalCents: total,
		Deadline:   deadline,
		State:      model.PledgeActive,
		CreatedBy:  owner.ID,
	}
	require.NoError(t, r.CreatePledge(context.Background(), p))
	return p
}

func memberNames(members []model.Member) []string {
	res := make([]string, 0, len(members))
	for _, m := range members {
		res = append(res, m.LastName+", "+m.FirstName)
	}
	return res
}

func TestListMembers_FiltersAndOrder(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	tok := "m" + uuid.NewString()[:8]

	insertMember(t, r, "Beatriz", tok+"Zapata", model.RoleUser, model.MemberActive)
	insertMember(t, r, "Carlos", tok+"Alvarez", model.RoleUser, model.MemberActive)
	insertMember(t, r, "Ana", tok+"Alvarez", model.RoleUser, model.MemberActive)
	insertMember(t, r, "Diego", tok+"Mora", model.RolePending, model.MemberActive)
	insertMember(t, r, "Elena", tok+"Mora", model.RoleUser, model.MemberInactive)

	tests := []struct {
		name   string
		filter model.MemberFilter
		want   []string
	}{
		{
			name:   "search only",
			filter: model.MemberFilter{Search: tok},
			want: []string{
				tok + "Alvarez, Ana", tok + "Alvarez, Carlos", tok + "Mora, Diego",
				tok + "Mora, Elena", tok + "Zapata, Beatriz",
			},
		},
		{
			name:   "search is case-insensitive",
			filter: model.MemberFilter{Search: strings.ToUpper(tok) + "MORA"},
			want:   []string{tok + "Mora, Diego", tok + "Mora, Elena"},
		},
		{
			name:   "state, role and search",
			filter: model.MemberFilter{State: model.MemberActive, Role: model.RoleUser, Search: tok},
			want:   []string{tok + "Alvarez, Ana", tok + "Alvarez, Carlos", tok + "Zapata, Beatriz"},
		},
		{
			name:   "role and search",
			filter: model.MemberFilter{Role: model.RolePending, Search: tok},
			want:   []string{tok + "Mora, Diego"},
		},
		{
			name:   "state and search",
			filter: model.MemberFilter{State: model.MemberInactive, Search: tok},
			want:   []string{tok + "Mora, Elena"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ListMembers(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, memberNames(got))
		})
	}
}

func TestListMembers_SearchWildcardsAreLiteral(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	tok := "w" + uuid.NewString()[:8]

	insertMember(t, r, "Literal", tok+"50%_off", model.RoleUser, model.MemberActive)
	insertMember(t, r, "Comodin", tok+"50Xoff", model.RoleUser, model.MemberActive)
	insertMember(t, r, "Barra", tok+`a\b`, model.RoleUser, model.MemberActive)

	got, err := r.ListMembers(ctx, model.MemberFilter{Search: tok + "50%_"})
	require.NoError(t, err)
	assert.Equal(t, []string{tok + "50%_off, Literal"}, memberNames(got))

	got, err = r.ListMembers(ctx, model.MemberFilter{Search: tok + "_"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.ListMembers(ctx, model.MemberFilter{Search: tok + `a\`})
	require.NoError(t, err)
	assert.Equal(t, []string{tok + `a\b, Barra`}, memberNames(got))
}

func TestListPledges_FiltersAndOrder(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	tok := "p" + uuid.NewString()[:8]
	owner := insertMember(t, r, "Rosa", tok+"Paredes", model.RoleUser, model.MemberActive)
	other := insertMember(t, r, "Luis", "Otro", model.RoleUser, model.MemberActive)

	late := insertPledge(t, r, owner, "Techo 1000", 10000, "2027-03-01")
	early := insertPledge(t, r, owner, "Techo 100%", 10000, "2026-11-15")
	middle := insertPledge(t, r, owner, "Campanario", 10000, "2027-01-10")
	insertPledge(t, r, other, tok+" ofrenda", 10000, "2026-10-01")
	require.NoError(t, r.TransitionPledge(ctx, middle.ID, model.PledgeCancelled, owner.ID))

	ids := func(pledges []model.Pledge) []uuid.UUID {
		res := make([]uuid.UUID, 0, len(pledges))
		for _, p := range pledges {
			res = append(res, p.ID)
		}
		return res
	}

	got, err := r.ListPledges(ctx, model.PledgeFilter{MemberID: &owner.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early.ID, middle.ID, late.ID}, ids(got))
	assert.Equal(t, "2026-11-15", got[0].Deadline.Format("2006-01-02"))
	assert.Equal(t, "Rosa", got[0].MemberFirst)
	assert.Equal(t, tok+"Paredes", got[0].MemberLast)

	got, err = r.ListPledges(ctx, model.PledgeFilter{State: model.PledgeActive, MemberID: &owner.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early.ID, late.ID}, ids(got))

	got, err = r.ListPledges(ctx, model.PledgeFilter{State: model.PledgeCancelled, MemberID: &owner.ID, Search: "campa"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{middle.ID}, ids(got))

	got, err = r.ListPledges(ctx, model.PledgeFilter{MemberID: &owner.ID, Search: "100%"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early.ID}, ids(got))

	// Поиск по фамилии владельца находит только его обеты, хотя tok есть и в цели чужого обета.
	got, err = r.ListPledges(ctx, model.PledgeFilter{Search: tok + "PAREDES"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early.ID, middle.ID, late.ID}, ids(got))
}

func TestGetPaymentsByPledge_NewestFirst(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	owner := createTestMember(t, r, model.RoleUser)
	p := createTestPledge(t, r, owner, 100000)

	for _, tc := range []struct {
		cents int64
		day   string
	}{
		{cents: 100, day: "2026-01-10"},
		{cents: 300, day: "2026-03-01"},
		{cents: 200, day: "2026-02-05"},
	} {
		paidAt, err := time.Parse("2006-01-02", tc.day)
		require.NoError(t, err)
		_, _, err = r.RecordPayment(ctx, &model.Payment{
			ID: uuid.New(), PledgeID: p.ID, AmountCents: tc.cents, PaidAt: paidAt, RecordedBy: owner.ID,
		})
		require.NoError(t, err)
	}

	payments, err := r.GetPaymentsByPledge(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.Equal(t, []int64{300, 200, 100},
		[]int64{payments[0].AmountCents, payments[1].AmountCents, payments[2].AmountCents})
	assert.Equal(t, owner.ID, payments[0].RecordedBy)
	assert.False(t, payments[0].CreatedAt.IsZero())

	none, err := r.GetPaymentsByPledge(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetDashboardStats_CountsOnlyActivePledges(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	owner := createTestMember(t, r, model.RoleUser)

	before, err := r.GetDashboardStats(ctx)
	require.NoError(t, err)

	first := createTestPledge(t, r, owner, 10000)
	createTestPledge(t, r, owner, 25000)
	cancelled := createTestPledge(t, r, owner, 7000)
	require.NoError(t, pay(r, first.ID, owner.ID, 4000))
	require.NoError(t, pay(r, cancelled.ID, owner.ID, 1000))
	require.NoError(t, r.TransitionPledge(ctx, cancelled.ID, model.PledgeCancelled, owner.ID))

	after, err := r.GetDashboardStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(35000), after.TotalCommittedCents-before.TotalCommittedCents)
	assert.Equal(t, int64(4000), after.TotalPaidCents-before.TotalPaidCents)
	assert.Equal(t, int64(31000), after.TotalPendingCents-before.TotalPendingCents)
	assert.Equal(t, int64(2), after.ActivePledges-before.ActivePledges)
	assert.Equal(t, after.TotalCommittedCents-after.TotalPaidCents, after.TotalPendingCents)
}

func TestRecordPayment_SameIDRecordedOnce(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	owner := createTestMember(t, r, model.RoleUser)
	p := createTestPledge(t, r, owner, 10000)

	payment := &model.Payment{
		ID: uuid.New(), PledgeID: p.ID, AmountCents: 3000, PaidAt: time.Now(), RecordedBy: owner.ID,
	}
	paid, total, err := r.RecordPayment(ctx, payment)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), paid)
	assert.Equal(t, int64(10000), total)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			replay := *payment
			paid, _, err := r.RecordPayment(ctx, &replay)
			assert.NoError(t, err)
			assert.Equal(t, int64(3000), paid)
		}()
	}
	wg.Wait()

	payments, err := r.GetPaymentsByPledge(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Equal(t, int64(3000), paymentsSum(t, r, p.ID))
}
