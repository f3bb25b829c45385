package service

import (
	"context"
	"errors"
	"testing"

	"sales-order-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTeam(users ...models.User) (*TeamService, *fakeDirectory, *fakePublisher) {
	directory := newFakeDirectory(users...)
	publisher := &fakePublisher{}
	return NewTeamService(directory, publisher, inline), directory, publisher
}

func TestAssignAndUnassign(t *testing.T) {
	svc, directory, publisher := newTeam(
		models.User{ID: 10, Username: "ravi", Role: models.RoleSales},
		models.User{ID: 11, Username: "asha", Role: models.RoleSales},
	)
	ctx := context.Background()

	user, err := svc.Assign(ctx, sales, 11)
	require.NoError(t, err)
	require.NotNil(t, user.AssignedToLeader)
	assert.Equal(t, sales.ID, *user.AssignedToLeader)

	team, err := svc.MyTeam(ctx, sales)
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, "asha", team[0].Username)

	user, err = svc.Unassign(ctx, sales, 11)
	require.NoError(t, err)
	assert.Nil(t, user.AssignedToLeader)

	stored, _ := directory.GetUserByID(ctx, 11)
	assert.Nil(t, stored.AssignedToLeader)
	assert.Equal(t, []teamUpdate{
		{UserID: 11, LeaderID: 10, Action: models.TeamActionAssign},
		{UserID: 11, LeaderID: 10, Action: models.TeamActionUnassign},
	}, publisher.teams)
}

func TestAssignRejections(t *testing.T) {
	other := int64(99)
	svc, _, publisher := newTeam(
		models.User{ID: 10, Username: "ravi", Role: models.RoleSales},
		models.User{ID: 12, Username: "kiran", Role: models.RoleSales, AssignedToLeader: &other},
	)
	ctx := context.Background()

	_, err := svc.Assign(ctx, sales, sales.ID)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.Assign(ctx, sales, 404)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Assign(ctx, sales, 12)
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "User is already assigned to a team", verr.Message)

	_, err = svc.Unassign(ctx, sales, 12)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.Empty(t, publisher.teams)
}

func TestAvailableUsers(t *testing.T) {
	leader := int64(10)
	svc, _, _ := newTeam(
		models.User{ID: 10, Username: "ravi", Role: models.RoleSales},
		models.User{ID: 11, Username: "asha", Role: models.RoleSales},
		models.User{ID: 12, Username: "kiran", Role: models.RoleSales, AssignedToLeader: &leader},
		models.User{ID: 13, Username: "dev", Role: models.RoleProduction},
		models.User{ID: 14, Username: "ops", Role: models.RoleAdmin},
	)

	users, err := svc.AvailableUsers(context.Background(), sales)
	require.NoError(t, err)

	var ids []int64
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []int64{11, 14}, ids)
}

func TestCurrentUser(t *testing.T) {
	svc, _, _ := newTeam(models.User{ID: 10, Username: "ravi", Role: models.RoleSales})

	user, err := svc.CurrentUser(context.Background(), sales)
	require.NoError(t, err)
	assert.Equal(t, "ravi", user.Username)

	_, err = svc.CurrentUser(context.Background(), models.Actor{ID: 5})
	assert.ErrorIs(t, err, ErrNotFound)
}
