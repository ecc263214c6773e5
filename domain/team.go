package domain

import "time"

// TeamRole определяет права участника в рамках бизнеса владельца.
type TeamRole string

const (
	TeamRoleOwner   TeamRole = "owner"
	TeamRoleAdmin   TeamRole = "admin"
	TeamRoleManager TeamRole = "manager"
	TeamRoleStaff   TeamRole = "staff"
)

// Valid проверяет, что роль относится к поддерживаемым значениям.
func (r TeamRole) Valid() bool {
	switch r {
	case TeamRoleOwner, TeamRoleAdmin, TeamRoleManager, TeamRoleStaff:
		return true
	default:
		return false
	}
}

// TeamMember — участник команды мерчанта.
type TeamMember struct {
	ID        string
	OwnerID   string
	UserID    string
	Role      TeamRole
	FullName  string
	Email     string
	Phone     string
	Active    bool
	CreatedAt time.Time
}

// InviteStatus описывает жизненный цикл приглашения в команду.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusExpired  InviteStatus = "expired"
)

// TeamInvite — приглашение по email с ограниченным сроком действия.
type TeamInvite struct {
	ID        string
	OwnerID   string
	Email     string
	Role      TeamRole
	Status    InviteStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}
