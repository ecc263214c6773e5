package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/duka/domain"
)

// teamRepositoryInMemory — in-memory реализация TeamRepository.
type teamRepositoryInMemory struct {
	mu      sync.RWMutex
	members map[string]domain.TeamMember
	invites map[string]domain.TeamInvite
}

// NewTeamRepository возвращает in-memory репозиторий команды.
func NewTeamRepository() domain.TeamRepository {
	return &teamRepositoryInMemory{
		members: make(map[string]domain.TeamMember),
		invites: make(map[string]domain.TeamInvite),
	}
}

func (r *teamRepositoryInMemory) AddMember(member domain.TeamMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[member.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.members[member.ID] = member
	return nil
}

func (r *teamRepositoryInMemory) ListMembers(ownerID string) ([]domain.TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.TeamMember, 0, len(r.members))
	for _, member := range r.members {
		if member.OwnerID != ownerID {
			continue
		}
		result = append(result, member)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *teamRepositoryInMemory) UpdateMember(member domain.TeamMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.members[member.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.OwnerID != member.OwnerID {
		return domain.ErrPermissionDenied
	}
	r.members[member.ID] = member
	return nil
}

func (r *teamRepositoryInMemory) RemoveMember(ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.members[id]
	if !ok {
		return domain.ErrNotFound
	}
	if current.OwnerID != ownerID {
		return domain.ErrPermissionDenied
	}
	delete(r.members, id)
	return nil
}

func (r *teamRepositoryInMemory) CreateInvite(invite domain.TeamInvite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.invites[invite.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.invites[invite.ID] = invite
	return nil
}

func (r *teamRepositoryInMemory) ListInvites(ownerID string) ([]domain.TeamInvite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.TeamInvite, 0, len(r.invites))
	for _, invite := range r.invites {
		if invite.OwnerID != ownerID {
			continue
		}
		result = append(result, invite)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *teamRepositoryInMemory) UpdateInvite(invite domain.TeamInvite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.invites[invite.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.OwnerID != invite.OwnerID {
		return domain.ErrPermissionDenied
	}
	r.invites[invite.ID] = invite
	return nil
}

var _ domain.TeamRepository = (*teamRepositoryInMemory)(nil)
