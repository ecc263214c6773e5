package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/duka/domain"
)

func TestExpenseRepository_PostgresCRUD(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewExpenseRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	expense := domain.Expense{
		ID:          "expense-1",
		OwnerID:     "owner-1",
		Category:    "rent",
		Description: "shop rent august",
		AmountMinor: 1500000,
		SpentAt:     now.Add(-24 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.Create(expense))

	got, err := repo.Get("owner-1", expense.ID)
	require.NoError(t, err)
	require.Equal(t, expense.Category, got.Category)
	require.Equal(t, expense.AmountMinor, got.AmountMinor)

	got.AmountMinor = 1600000
	got.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.Update(got))

	updated, err := repo.Get("owner-1", expense.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1600000), updated.AmountMinor)

	listed, err := repo.List("owner-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = repo.Get("owner-2", expense.ID)
	require.True(t, errors.Is(err, domain.ErrPermissionDenied), "got %v", err)

	require.NoError(t, repo.Delete("owner-1", expense.ID))
	_, err = repo.Get("owner-1", expense.ID)
	require.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func TestSupplierRepository_PostgresBrandsRoundTrip(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewSupplierRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	supplier := domain.Supplier{
		ID:        "supplier-1",
		OwnerID:   "owner-1",
		Name:      "Kamau Imports",
		Phone:     "0722000111",
		Brands:    []string{"Nykee", "Adadis"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(supplier))

	got, err := repo.Get("owner-1", supplier.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Nykee", "Adadis"}, got.Brands)

	got.Brands = append(got.Brands, "Pumba")
	got.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.Update(got))

	updated, err := repo.Get("owner-1", supplier.ID)
	require.NoError(t, err)
	require.Len(t, updated.Brands, 3)

	// Пустой список брендов не превращается в NULL.
	bare := domain.Supplier{
		ID:        "supplier-2",
		OwnerID:   "owner-1",
		Name:      "Bare Supplier",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(bare))
	gotBare, err := repo.Get("owner-1", bare.ID)
	require.NoError(t, err)
	require.Empty(t, gotBare.Brands)

	listed, err := repo.List("owner-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)

	require.NoError(t, repo.Delete("owner-1", supplier.ID))
	err = repo.Delete("owner-2", bare.ID)
	require.True(t, errors.Is(err, domain.ErrPermissionDenied), "got %v", err)
}

func TestTeamRepository_PostgresMembersAndInvites(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewTeamRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	member := domain.TeamMember{
		ID:        "member-1",
		OwnerID:   "owner-1",
		UserID:    "user-1",
		Role:      domain.TeamRoleManager,
		FullName:  "Akinyi O.",
		Email:     "akinyi@example.com",
		Active:    true,
		CreatedAt: now,
	}
	require.NoError(t, repo.AddMember(member))

	members, err := repo.ListMembers("owner-1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, domain.TeamRoleManager, members[0].Role)

	member.Role = domain.TeamRoleAdmin
	require.NoError(t, repo.UpdateMember(member))

	members, err = repo.ListMembers("owner-1")
	require.NoError(t, err)
	require.Equal(t, domain.TeamRoleAdmin, members[0].Role)

	err = repo.RemoveMember("owner-2", member.ID)
	require.True(t, errors.Is(err, domain.ErrPermissionDenied), "got %v", err)
	require.NoError(t, repo.RemoveMember("owner-1", member.ID))
	err = repo.RemoveMember("owner-1", member.ID)
	require.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	invite := domain.TeamInvite{
		ID:        "invite-1",
		OwnerID:   "owner-1",
		Email:     "staff@example.com",
		Role:      domain.TeamRoleStaff,
		Status:    domain.InviteStatusPending,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		CreatedAt: now,
	}
	require.NoError(t, repo.CreateInvite(invite))

	invites, err := repo.ListInvites("owner-1")
	require.NoError(t, err)
	require.Len(t, invites, 1)
	require.Equal(t, domain.InviteStatusPending, invites[0].Status)

	invite.Status = domain.InviteStatusAccepted
	require.NoError(t, repo.UpdateInvite(invite))

	invites, err = repo.ListInvites("owner-1")
	require.NoError(t, err)
	require.Equal(t, domain.InviteStatusAccepted, invites[0].Status)

	foreign := invite
	foreign.OwnerID = "owner-2"
	err = repo.UpdateInvite(foreign)
	require.True(t, errors.Is(err, domain.ErrPermissionDenied), "got %v", err)
}
