package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/duka/domain"
)

type teamRepository struct {
	db *sql.DB
}

// NewTeamRepository создаёт PostgreSQL-реализацию TeamRepository.
func NewTeamRepository(store *Store) domain.TeamRepository {
	return &teamRepository{db: store.DB()}
}

func (r *teamRepository) AddMember(member domain.TeamMember) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO team_members (
			id, owner_id, user_id, role, full_name, email, phone, active, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		member.ID, member.OwnerID, member.UserID, string(member.Role),
		member.FullName, member.Email, member.Phone, member.Active, member.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert team member: %w", err)
	}

	return nil
}

func (r *teamRepository) ListMembers(ownerID string) ([]domain.TeamMember, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, user_id, role, full_name, email, phone, active, created_at
		FROM team_members
		WHERE owner_id = $1
		ORDER BY created_at ASC, id ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	members := make([]domain.TeamMember, 0)
	for rows.Next() {
		var (
			member domain.TeamMember
			role   string
		)
		if err := rows.Scan(
			&member.ID, &member.OwnerID, &member.UserID, &role,
			&member.FullName, &member.Email, &member.Phone, &member.Active,
			&member.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		member.Role = domain.TeamRole(role)
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team members: %w", err)
	}

	return members, nil
}

func (r *teamRepository) UpdateMember(member domain.TeamMember) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE team_members
		SET role = $3,
		    full_name = $4,
		    email = $5,
		    phone = $6,
		    active = $7
		WHERE id = $1
		  AND owner_id = $2
	`,
		member.ID, member.OwnerID, string(member.Role),
		member.FullName, member.Email, member.Phone, member.Active,
	)
	if err != nil {
		return fmt.Errorf("update team member: %w", err)
	}

	return r.memberMiss(ctx, res, member.OwnerID, member.ID)
}

func (r *teamRepository) RemoveMember(ownerID, id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM team_members WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete team member: %w", err)
	}

	return r.memberMiss(ctx, res, ownerID, id)
}

func (r *teamRepository) CreateInvite(invite domain.TeamInvite) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO team_invites (
			id, owner_id, email, role, status, expires_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		invite.ID, invite.OwnerID, invite.Email, string(invite.Role),
		string(invite.Status), invite.ExpiresAt, invite.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert team invite: %w", err)
	}

	return nil
}

func (r *teamRepository) ListInvites(ownerID string) ([]domain.TeamInvite, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, email, role, status, expires_at, created_at
		FROM team_invites
		WHERE owner_id = $1
		ORDER BY created_at ASC, id ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list team invites: %w", err)
	}
	defer rows.Close()

	invites := make([]domain.TeamInvite, 0)
	for rows.Next() {
		var (
			invite domain.TeamInvite
			role   string
			status string
		)
		if err := rows.Scan(
			&invite.ID, &invite.OwnerID, &invite.Email, &role, &status,
			&invite.ExpiresAt, &invite.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan team invite: %w", err)
		}
		invite.Role = domain.TeamRole(role)
		invite.Status = domain.InviteStatus(status)
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team invites: %w", err)
	}

	return invites, nil
}

func (r *teamRepository) UpdateInvite(invite domain.TeamInvite) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE team_invites
		SET email = $3,
		    role = $4,
		    status = $5,
		    expires_at = $6
		WHERE id = $1
		  AND owner_id = $2
	`,
		invite.ID, invite.OwnerID, invite.Email, string(invite.Role),
		string(invite.Status), invite.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("update team invite: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var ownerID string
		err := r.db.QueryRowContext(ctx, `
			SELECT owner_id FROM team_invites WHERE id = $1
		`, invite.ID).Scan(&ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check team invite: %w", err)
		}
		return domain.ErrPermissionDenied
	}

	return nil
}

// memberMiss различает отсутствие участника и доступ к чужой команде.
func (r *teamRepository) memberMiss(ctx context.Context, res sql.Result, ownerID, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var actualOwner string
	err = r.db.QueryRowContext(ctx, `
		SELECT owner_id FROM team_members WHERE id = $1
	`, id).Scan(&actualOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check team member: %w", err)
	}
	if actualOwner != ownerID {
		return domain.ErrPermissionDenied
	}

	return domain.ErrNotFound
}

var _ domain.TeamRepository = (*teamRepository)(nil)
