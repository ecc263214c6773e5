// Package backoffice объединяет вспомогательные справочники мерчанта:
// расходы, поставщиков и команду.
package backoffice

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/duka/domain"
)

// inviteTTL — срок действия приглашения в команду.
const inviteTTL = 7 * 24 * time.Hour

// Service — сервис справочников мерчанта.
type Service struct {
	expenses  domain.ExpenseRepository
	suppliers domain.SupplierRepository
	team      domain.TeamRepository
	logger    *log.Entry
}

// NewService создаёт сервис справочников.
func NewService(expenses domain.ExpenseRepository, suppliers domain.SupplierRepository, team domain.TeamRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "backoffice")
	}
	return &Service{expenses: expenses, suppliers: suppliers, team: team, logger: logger}
}

// ExpenseInput — параметры расхода.
type ExpenseInput struct {
	Category    string
	Description string
	AmountMinor int64
	SpentAt     time.Time
}

// RecordExpense сохраняет новый расход.
func (s *Service) RecordExpense(ownerID string, input ExpenseInput) (domain.Expense, error) {
	now := time.Now().UTC()
	spentAt := input.SpentAt
	if spentAt.IsZero() {
		spentAt = now
	}
	expense := domain.Expense{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Category:    input.Category,
		Description: input.Description,
		AmountMinor: input.AmountMinor,
		SpentAt:     spentAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errs := expense.Validate(); len(errs) > 0 {
		return domain.Expense{}, errors.Join(errs...)
	}
	if err := s.expenses.Create(expense); err != nil {
		return domain.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return expense, nil
}

// UpdateExpense перезаписывает атрибуты расхода.
func (s *Service) UpdateExpense(ownerID, id string, input ExpenseInput) (domain.Expense, error) {
	current, err := s.expenses.Get(ownerID, id)
	if err != nil {
		return domain.Expense{}, err
	}

	current.Category = input.Category
	current.Description = input.Description
	current.AmountMinor = input.AmountMinor
	if !input.SpentAt.IsZero() {
		current.SpentAt = input.SpentAt
	}
	current.UpdatedAt = time.Now().UTC()

	if errs := current.Validate(); len(errs) > 0 {
		return domain.Expense{}, errors.Join(errs...)
	}
	if err := s.expenses.Update(current); err != nil {
		return domain.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return current, nil
}

// DeleteExpense удаляет расход владельца.
func (s *Service) DeleteExpense(ownerID, id string) error {
	return s.expenses.Delete(ownerID, id)
}

// ListExpenses возвращает расходы владельца.
func (s *Service) ListExpenses(ownerID string) ([]domain.Expense, error) {
	return s.expenses.List(ownerID)
}

// SupplierInput — параметры поставщика.
type SupplierInput struct {
	Name    string
	Phone   string
	Email   string
	Address string
	Brands  []string
}

// AddSupplier сохраняет нового поставщика.
func (s *Service) AddSupplier(ownerID string, input SupplierInput) (domain.Supplier, error) {
	now := time.Now().UTC()
	supplier := domain.Supplier{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      input.Name,
		Phone:     input.Phone,
		Email:     input.Email,
		Address:   input.Address,
		Brands:    append([]string(nil), input.Brands...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errs := supplier.Validate(); len(errs) > 0 {
		return domain.Supplier{}, errors.Join(errs...)
	}
	if err := s.suppliers.Create(supplier); err != nil {
		return domain.Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	return supplier, nil
}

// UpdateSupplier перезаписывает атрибуты поставщика.
func (s *Service) UpdateSupplier(ownerID, id string, input SupplierInput) (domain.Supplier, error) {
	current, err := s.suppliers.Get(ownerID, id)
	if err != nil {
		return domain.Supplier{}, err
	}

	current.Name = input.Name
	current.Phone = input.Phone
	current.Email = input.Email
	current.Address = input.Address
	current.Brands = append([]string(nil), input.Brands...)
	current.UpdatedAt = time.Now().UTC()

	if errs := current.Validate(); len(errs) > 0 {
		return domain.Supplier{}, errors.Join(errs...)
	}
	if err := s.suppliers.Update(current); err != nil {
		return domain.Supplier{}, fmt.Errorf("update supplier: %w", err)
	}
	return current, nil
}

// DeleteSupplier удаляет поставщика владельца.
func (s *Service) DeleteSupplier(ownerID, id string) error {
	return s.suppliers.Delete(ownerID, id)
}

// ListSuppliers возвращает поставщиков владельца.
func (s *Service) ListSuppliers(ownerID string) ([]domain.Supplier, error) {
	return s.suppliers.List(ownerID)
}

// InviteMember создаёт приглашение в команду со сроком действия inviteTTL.
func (s *Service) InviteMember(ownerID, email string, role domain.TeamRole) (domain.TeamInvite, error) {
	if email == "" {
		return domain.TeamInvite{}, errors.New("invite email is required")
	}
	if !role.Valid() || role == domain.TeamRoleOwner {
		return domain.TeamInvite{}, fmt.Errorf("invalid invite role %q", role)
	}

	now := time.Now().UTC()
	invite := domain.TeamInvite{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Email:     email,
		Role:      role,
		Status:    domain.InviteStatusPending,
		ExpiresAt: now.Add(inviteTTL),
		CreatedAt: now,
	}
	if err := s.team.CreateInvite(invite); err != nil {
		return domain.TeamInvite{}, fmt.Errorf("create invite: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"invite_id": invite.ID,
		"role":      invite.Role,
	}).Info("team invite created")

	return invite, nil
}

// AcceptInvite принимает приглашение и добавляет участника в команду.
// Просроченное приглашение помечается expired и не даёт членства.
func (s *Service) AcceptInvite(ownerID, inviteID, userID, fullName string) (domain.TeamMember, error) {
	invites, err := s.team.ListInvites(ownerID)
	if err != nil {
		return domain.TeamMember{}, err
	}

	var invite domain.TeamInvite
	found := false
	for _, candidate := range invites {
		if candidate.ID == inviteID {
			invite = candidate
			found = true
			break
		}
	}
	if !found {
		return domain.TeamMember{}, domain.ErrNotFound
	}
	if invite.Status != domain.InviteStatusPending {
		return domain.TeamMember{}, fmt.Errorf("invite is %s", invite.Status)
	}

	now := time.Now().UTC()
	if now.After(invite.ExpiresAt) {
		invite.Status = domain.InviteStatusExpired
		if err := s.team.UpdateInvite(invite); err != nil {
			s.logger.WithError(err).WithField("invite_id", invite.ID).Warn("failed to expire invite")
		}
		return domain.TeamMember{}, errors.New("invite has expired")
	}

	member := domain.TeamMember{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		UserID:    userID,
		Role:      invite.Role,
		FullName:  fullName,
		Email:     invite.Email,
		Active:    true,
		CreatedAt: now,
	}
	if err := s.team.AddMember(member); err != nil {
		return domain.TeamMember{}, fmt.Errorf("add member: %w", err)
	}

	invite.Status = domain.InviteStatusAccepted
	if err := s.team.UpdateInvite(invite); err != nil {
		s.logger.WithError(err).WithField("invite_id", invite.ID).Warn("failed to mark invite accepted")
	}

	return member, nil
}

// ChangeMemberRole меняет роль участника. Роль owner назначить нельзя.
func (s *Service) ChangeMemberRole(ownerID, memberID string, role domain.TeamRole) error {
	if !role.Valid() || role == domain.TeamRoleOwner {
		return fmt.Errorf("invalid role %q", role)
	}

	members, err := s.team.ListMembers(ownerID)
	if err != nil {
		return err
	}
	for _, member := range members {
		if member.ID != memberID {
			continue
		}
		if member.Role == domain.TeamRoleOwner {
			return domain.ErrPermissionDenied
		}
		member.Role = role
		return s.team.UpdateMember(member)
	}
	return domain.ErrNotFound
}

// RemoveMember удаляет участника команды.
func (s *Service) RemoveMember(ownerID, memberID string) error {
	return s.team.RemoveMember(ownerID, memberID)
}

// ListMembers возвращает участников команды владельца.
func (s *Service) ListMembers(ownerID string) ([]domain.TeamMember, error) {
	return s.team.ListMembers(ownerID)
}

// ListInvites возвращает приглашения владельца.
func (s *Service) ListInvites(ownerID string) ([]domain.TeamInvite, error) {
	return s.team.ListInvites(ownerID)
}
