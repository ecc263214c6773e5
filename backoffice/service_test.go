package backoffice

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/duka/domain"
	"github.com/vladislavdragonenkov/duka/storage/memory"
)

const testOwner = "owner-1"

func newTestService() *Service {
	return NewService(
		memory.NewExpenseRepository(),
		memory.NewSupplierRepository(),
		memory.NewTeamRepository(),
		nil,
	)
}

func TestRecordExpense(t *testing.T) {
	svc := newTestService()

	expense, err := svc.RecordExpense(testOwner, ExpenseInput{
		Category:    "rent",
		Description: "September rent",
		AmountMinor: 3500000,
	})
	if err != nil {
		t.Fatalf("RecordExpense: %v", err)
	}
	if expense.ID == "" {
		t.Fatal("expected generated expense id")
	}
	if expense.SpentAt.IsZero() {
		t.Fatal("expected default spent_at")
	}

	expenses, err := svc.ListExpenses(testOwner)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("expenses = %d, want 1", len(expenses))
	}
}

func TestRecordExpenseInvalid(t *testing.T) {
	svc := newTestService()

	_, err := svc.RecordExpense(testOwner, ExpenseInput{Category: "", AmountMinor: 0})
	if !errors.Is(err, domain.ErrExpenseCategoryRequired) {
		t.Fatalf("err = %v, want %v", err, domain.ErrExpenseCategoryRequired)
	}
	if !errors.Is(err, domain.ErrExpenseAmountInvalid) {
		t.Fatalf("err = %v, want %v", err, domain.ErrExpenseAmountInvalid)
	}
}

func TestAddSupplier(t *testing.T) {
	svc := newTestService()

	supplier, err := svc.AddSupplier(testOwner, SupplierInput{
		Name:   "Kariuki Footwear",
		Phone:  "0712345678",
		Brands: []string{"Savanna", "Bata"},
	})
	if err != nil {
		t.Fatalf("AddSupplier: %v", err)
	}
	if len(supplier.Brands) != 2 {
		t.Fatalf("brands = %v", supplier.Brands)
	}

	_, err = svc.AddSupplier(testOwner, SupplierInput{Name: ""})
	if !errors.Is(err, domain.ErrSupplierNameRequired) {
		t.Fatalf("err = %v, want %v", err, domain.ErrSupplierNameRequired)
	}
}

func TestInviteAndAccept(t *testing.T) {
	svc := newTestService()

	invite, err := svc.InviteMember(testOwner, "staff@example.com", domain.TeamRoleStaff)
	if err != nil {
		t.Fatalf("InviteMember: %v", err)
	}
	if invite.Status != domain.InviteStatusPending {
		t.Fatalf("status = %q", invite.Status)
	}
	if !invite.ExpiresAt.After(time.Now()) {
		t.Fatal("expected expiry in the future")
	}

	member, err := svc.AcceptInvite(testOwner, invite.ID, "user-9", "John Kamau")
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if member.Role != domain.TeamRoleStaff {
		t.Fatalf("role = %q", member.Role)
	}
	if !member.Active {
		t.Fatal("expected active member")
	}

	invites, err := svc.ListInvites(testOwner)
	if err != nil {
		t.Fatalf("ListInvites: %v", err)
	}
	if invites[0].Status != domain.InviteStatusAccepted {
		t.Fatalf("invite status = %q, want accepted", invites[0].Status)
	}

	// Принять то же приглашение второй раз нельзя.
	if _, err := svc.AcceptInvite(testOwner, invite.ID, "user-10", "Jane"); err == nil {
		t.Fatal("expected error on double accept")
	}
}

func TestInviteOwnerRoleRejected(t *testing.T) {
	svc := newTestService()

	if _, err := svc.InviteMember(testOwner, "boss@example.com", domain.TeamRoleOwner); err == nil {
		t.Fatal("expected error for owner role invite")
	}
	if _, err := svc.InviteMember(testOwner, "x@example.com", domain.TeamRole("superuser")); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestChangeMemberRole(t *testing.T) {
	svc := newTestService()

	invite, err := svc.InviteMember(testOwner, "staff@example.com", domain.TeamRoleStaff)
	if err != nil {
		t.Fatalf("InviteMember: %v", err)
	}
	member, err := svc.AcceptInvite(testOwner, invite.ID, "user-9", "John Kamau")
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}

	if err := svc.ChangeMemberRole(testOwner, member.ID, domain.TeamRoleManager); err != nil {
		t.Fatalf("ChangeMemberRole: %v", err)
	}

	members, err := svc.ListMembers(testOwner)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if members[0].Role != domain.TeamRoleManager {
		t.Fatalf("role = %q, want manager", members[0].Role)
	}

	if err := svc.ChangeMemberRole(testOwner, member.ID, domain.TeamRoleOwner); err == nil {
		t.Fatal("expected error promoting to owner")
	}
	if err := svc.ChangeMemberRole(testOwner, "ghost", domain.TeamRoleStaff); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, domain.ErrNotFound)
	}
}
