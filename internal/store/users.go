package store

import (
	"context"
	"database/sql"
	"errors"

	"sales-order-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// TeamMemberIDs returns the ids of users reporting to the leader
func (s *Store) TeamMemberIDs(ctx context.Context, leaderID int64) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, "SELECT id FROM users WHERE assigned_to_leader = $1 ORDER BY id", leaderID)
	return ids, err
}

// ListTeam returns the users reporting to the leader
func (s *Store) ListTeam(ctx context.Context, leaderID int64) ([]models.User, error) {
	users := []models.User{}
	err := s.db.SelectContext(ctx, &users,
		"SELECT * FROM users WHERE assigned_to_leader = $1 ORDER BY username", leaderID)
	return users, err
}

// ListAvailableUsers returns unassigned users with one of the roles, excluding one user
func (s *Store) ListAvailableUsers(ctx context.Context, excludeID int64, roles []string) ([]models.User, error) {
	query, args, err := sqlx.In(`
		SELECT * FROM users
		WHERE id <> ? AND assigned_to_leader IS NULL AND role IN (?)
		ORDER BY username`, excludeID, roles)
	if err != nil {
		return nil, err
	}
	users := []models.User{}
	err = s.db.SelectContext(ctx, &users, s.db.Rebind(query), args...)
	return users, err
}

// AssignLeader sets the user's leader if the user has none yet.
// It reports false when the user was already assigned or does not exist.
func (s *Store) AssignLeader(ctx context.Context, userID, leaderID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET assigned_to_leader = $1 WHERE id = $2 AND assigned_to_leader IS NULL",
		leaderID, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}

// UnassignLeader clears the user's leader if it is leaderID
func (s *Store) UnassignLeader(ctx context.Context, userID, leaderID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET assigned_to_leader = NULL WHERE id = $1 AND assigned_to_leader = $2",
		userID, leaderID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}
