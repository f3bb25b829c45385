package service

import (
	"context"
	"fmt"

	"sales-order-service/internal/models"
	"sales-order-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TeamService manages leader/member assignments in the user directory
type TeamService struct {
	directory  Directory
	publisher  Publisher
	background Background
	logger     *zap.Logger
}

// NewTeamService creates a new team service
func NewTeamService(directory Directory, publisher Publisher, background Background) *TeamService {
	return &TeamService{
		directory:  directory,
		publisher:  publisher,
		background: background,
		logger:     util.GetLogger(),
	}
}

func (s *TeamService) user(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.directory.GetUserByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return user, nil
}

// CurrentUser returns the directory entry of the actor
func (s *TeamService) CurrentUser(ctx context.Context, actor models.Actor) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "TeamService.CurrentUser")
	defer span.End()

	return s.user(ctx, actor.ID)
}

// AvailableUsers lists unassigned users the actor could add to their team
func (s *TeamService) AvailableUsers(ctx context.Context, actor models.Actor) ([]models.User, error) {
	ctx, span := util.StartSpan(ctx, "TeamService.AvailableUsers")
	defer span.End()

	users, err := s.directory.ListAvailableUsers(ctx, actor.ID, models.TeamEligibility)
	if err != nil {
		return nil, fmt.Errorf("failed to list available users: %w", err)
	}
	return users, nil
}

// MyTeam lists the users reporting to the actor
func (s *TeamService) MyTeam(ctx context.Context, actor models.Actor) ([]models.User, error) {
	ctx, span := util.StartSpan(ctx, "TeamService.MyTeam")
	defer span.End()

	users, err := s.directory.ListTeam(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team: %w", err)
	}
	return users, nil
}

// Assign makes the actor the leader of userID
func (s *TeamService) Assign(ctx context.Context, actor models.Actor, userID int64) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "TeamService.Assign", attribute.Int64("user_id", userID))
	defer span.End()

	if userID == actor.ID {
		return nil, invalid("Cannot assign yourself")
	}
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.AssignedToLeader != nil {
		return nil, invalid("User is already assigned to a team")
	}

	ok, err := s.directory.AssignLeader(ctx, userID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign user: %w", err)
	}
	if !ok {
		return nil, invalid("User is already assigned to a team")
	}

	leader := actor.ID
	user.AssignedToLeader = &leader
	s.logger.Info("User assigned", zap.Int64("user_id", userID), zap.Int64("leader_id", actor.ID))
	s.notify(userID, actor.ID, models.TeamActionAssign)
	return user, nil
}

// Unassign removes userID from the actor's team
func (s *TeamService) Unassign(ctx context.Context, actor models.Actor, userID int64) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "TeamService.Unassign", attribute.Int64("user_id", userID))
	defer span.End()

	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.AssignedToLeader == nil || *user.AssignedToLeader != actor.ID {
		return nil, ErrForbidden
	}

	ok, err := s.directory.UnassignLeader(ctx, userID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to unassign user: %w", err)
	}
	if !ok {
		return nil, ErrForbidden
	}

	user.AssignedToLeader = nil
	s.logger.Info("User unassigned", zap.Int64("user_id", userID), zap.Int64("leader_id", actor.ID))
	s.notify(userID, actor.ID, models.TeamActionUnassign)
	return user, nil
}

func (s *TeamService) notify(userID, leaderID int64, action string) {
	s.background(func(ctx context.Context) {
		if err := s.publisher.PublishTeamUpdated(ctx, userID, leaderID, action); err != nil {
			s.logger.Error("Failed to publish team update",
				zap.Int64("user_id", userID),
				zap.String("action", action),
				zap.Error(err))
		}
	})
}
