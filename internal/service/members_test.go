package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/votos-system/internal/apperror"
	"github.com/mmeshcher/votos-system/internal/model"
)

func TestCreateMember_StartsPending(t *testing.T) {
	f := newFixture(t)
	user := f.addMember(t, model.RoleUser, model.MemberActive)

	email := "  carlos@example.org "
	id, err := f.svc.CreateMember(context.Background(), MemberInput{
		FirstName: " Carlos ",
		LastName:  "Gómez",
		Cedula:    " 1020304050 ",
		Email:     &email,
		BirthDate: "1990-05-17",
		Gender:    "m",
	}, ctxOf(user))
	require.NoError(t, err)

	m, err := f.svc.GetMember(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.RolePending, m.Role)
	assert.Equal(t, model.MemberActive, m.State)
	assert.Equal(t, "Carlos", m.FirstName)
	assert.Equal(t, "1020304050", m.Cedula)
	require.NotNil(t, m.Email)
	assert.Equal(t, "carlos@example.org", *m.Email)
	require.NotNil(t, m.Gender)
	assert.Equal(t, model.GenderMale, *m.Gender)
	require.NotNil(t, m.BirthDate)
	assert.Equal(t, 1990, m.BirthDate.Year())
}

func TestCreateMember_MissingFieldsListed(t *testing.T) {
	f := newFixture(t)
	user := f.addMember(t, model.RoleUser, model.MemberActive)

	_, err := f.svc.CreateMember(context.Background(), MemberInput{FirstName: "Carlos", LastName: "  "}, ctxOf(user))

	e, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindValidation, e.Kind)
	assert.Equal(t, []string{"apellidos", "cedula"}, e.Fields)
}

func TestCreateMember_InvalidOptionalFields(t *testing.T) {
	f := newFixture(t)
	user := f.addMember(t, model.RoleUser, model.MemberActive)
	bad := "not-an-email"

	tests := []struct {
		name  string
		in    MemberInput
		field string
	}{
		{name: "email", in: MemberInput{FirstName: "A", LastName: "B", Cedula: "1", Email: &bad}, field: "email"},
		{name: "birth date", in: MemberInput{FirstName: "A", LastName: "B", Cedula: "1", BirthDate: "17/05/1990"}, field: "fecha_nacimiento"},
		{name: "gender", in: MemberInput{FirstName: "A", LastName: "B", Cedula: "1", Gender: "X"}, field: "genero"},
		{name: "cedula", in: MemberInput{FirstName: "A", LastName: "B", Cedula: "10 20"}, field: "cedula"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateMember(context.Background(), tt.in, ctxOf(user))
			e, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, apperror.KindValidation, e.Kind)
			assert.Equal(t, []string{tt.field}, e.Fields)
		})
	}
}

func TestCreateMember_DuplicateCedula(t *testing.T) {
	f := newFixture(t)
	user := f.addMember(t, model.RoleUser, model.MemberActive)
	ctx := context.Background()

	_, err := f.svc.CreateMember(ctx, MemberInput{FirstName: "Ana", LastName: "Ruiz", Cedula: "555"}, ctxOf(user))
	require.NoError(t, err)

	before, err := f.svc.ListMembers(ctx, model.MemberFilter{})
	require.NoError(t, err)

	_, err = f.svc.CreateMember(ctx, MemberInput{FirstName: "Otra", LastName: "Persona", Cedula: "555"}, ctxOf(user))
	assert.ErrorIs(t, err, apperror.DuplicateMember)

	after, err := f.svc.ListMembers(ctx, model.MemberFilter{})
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestCreateMember_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	user := f.addMember(t, model.RoleUser, model.MemberActive)
	ctx := context.Background()

	email := "ana@example.org"
	upper := "ANA@example.org"
	_, err := f.svc.CreateMember(ctx, MemberInput{FirstName: "Ana", LastName: "Ruiz", Cedula: "1", Email: &email}, ctxOf(user))
	require.NoError(t, err)

	_, err = f.svc.CreateMember(ctx, MemberInput{FirstName: "Ana", LastName: "Ruiz", Cedula: "2", Email: &upper}, ctxOf(user))
	assert.ErrorIs(t, err, apperror.DuplicateMember)
}

func TestCreateMember_PendingActorRejected(t *testing.T) {
	f := newFixture(t)
	pending := f.addMember(t, model.RolePending, model.MemberActive)

	_, err := f.svc.CreateMember(context.Background(), MemberInput{FirstName: "A", LastName: "B", Cedula: "1"}, ctxOf(pending))
	assert.ErrorIs(t, err, apperror.Unauthorized)
}

func TestSignUp_NeverGrantsAdminFromEmail(t *testing.T) {
	f := newFixture(t)

	email := "admin@example.org"
	id, err := f.svc.SignUp(context.Background(), SignUpInput{
		MemberInput: MemberInput{FirstName: "Root", LastName: "Admin", Cedula: "9", Email: &email, Phone: strPtr("300")},
		Password:    "secreto1",
	})
	require.NoError(t, err)

	m, err := f.svc.GetMember(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.RolePending, m.Role)
}

func TestSignUp_RequiredFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SignUp(context.Background(), SignUpInput{
		MemberInput: MemberInput{FirstName: "Ana", LastName: "Ruiz", Cedula: "1"},
	})

	e, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"email", "password", "telefono"}, e.Fields)
	assert.Empty(t, f.auth.accounts)
}

func TestSignUp_WeakPassword(t *testing.T) {
	f := newFixture(t)

	email := "ana@example.org"
	_, err := f.svc.SignUp(context.Background(), SignUpInput{
		MemberInput: MemberInput{FirstName: "Ana", LastName: "Ruiz", Cedula: "1", Email: &email, Phone: strPtr("300")},
		Password:    "123",
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Empty(t, f.auth.accounts)
}

func TestSignUp_CompensatesAccountOnDuplicateCedula(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := "ana@example.org"
	_, err := f.svc.SignUp(ctx, SignUpInput{
		MemberInput: MemberInput{FirstName: "Ana", LastName: "Ruiz", Cedula: "777", Email: &first, Phone: strPtr("300")},
		Password:    "secreto1",
	})
	require.NoError(t, err)

	second := "otra@example.org"
	_, err = f.svc.SignUp(ctx, SignUpInput{
		MemberInput: MemberInput{FirstName: "Otra", LastName: "Ruiz", Cedula: "777", Email: &second, Phone: strPtr("301")},
		Password:    "secreto2",
	})
	assert.ErrorIs(t, err, apperror.DuplicateMember)

	require.Len(t, f.auth.deleted, 1)
	_, stillThere := f.auth.accounts[second]
	assert.False(t, stillThere)
	_, firstKept := f.auth.accounts[first]
	assert.True(t, firstKept)
}

func TestSignUp_CompensatesAccountOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.createMemberErr = errors.New("connection reset by peer")

	email := "ana@example.org"
	_, err := f.svc.SignUp(context.Background(), SignUpInput{
		MemberInput: MemberInput{FirstName: "Ana", LastName: "Ruiz", Cedula: "1", Email: &email, Phone: strPtr("300")},
		Password:    "secreto1",
	})
	assert.Equal(t, apperror.KindTransient, apperror.KindOf(err))
	assert.Len(t, f.auth.deleted, 1)
	assert.Empty(t, f.auth.accounts)
}

func TestSignUp_AccountProviderFailureStops(t *testing.T) {
	f := newFixture(t)
	f.auth.createErr = apperror.DuplicateMember.With("email is already registered")

	email := "ana@example.org"
	_, err := f.svc.SignUp(context.Background(), SignUpInput{
		MemberInput: MemberInput{FirstName: "Ana", LastName: "Ruiz", Cedula: "1", Email: &email, Phone: strPtr("300")},
		Password:    "secreto1",
	})
	assert.ErrorIs(t, err, apperror.DuplicateMember)

	members, err := f.svc.ListMembers(context.Background(), model.MemberFilter{})
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestListMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.addMember(t, model.RoleUser, model.MemberActive)

	for _, in := range []MemberInput{
		{FirstName: "Luis", LastName: "Zapata", Cedula: "10"},
		{FirstName: "Ana", LastName: "Alvarez", Cedula: "11"},
		{FirstName: "Beatriz", LastName: "Mora", Cedula: "12"},
	} {
		_, err := f.svc.CreateMember(ctx, in, ctxOf(user))
		require.NoError(t, err)
	}

	pending, err := f.svc.ListMembers(ctx, model.MemberFilter{Role: model.RolePending})
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "Alvarez", pending[0].LastName)
	assert.Equal(t, "Mora", pending[1].LastName)
	assert.Equal(t, "Zapata", pending[2].LastName)

	found, err := f.svc.ListMembers(ctx, model.MemberFilter{Search: "  beatriz "})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "12", found[0].Cedula)

	_, err = f.svc.ListMembers(ctx, model.MemberFilter{State: "borrado"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestGetMember_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetMember(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.NotFound)
}

func TestBootstrapAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.addMember(t, model.RolePending, model.MemberInactive)

	require.NoError(t, f.svc.BootstrapAdmin(ctx, pending.ID))

	ac, err := f.svc.Authorize(ctx, pending.ID, RequireAdmin)
	require.NoError(t, err)
	assert.True(t, ac.IsAdmin())

	assert.ErrorIs(t, f.svc.BootstrapAdmin(ctx, uuid.New()), apperror.NotFound)
}
