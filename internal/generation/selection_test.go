package generation_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generation"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generator/mock"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedJob(t *testing.T, env *testEnv, userID, uploadID int64, styles []int64) *models.GenerationJob {
	t.Helper()
	job, err := env.svc.CreateJob(context.Background(), userID, uploadID, styles)
	require.NoError(t, err)
	return env.waitForStatus(t, job.ID, models.JobStatusCompleted)
}

func selectedIDs(hs []*models.GeneratedHeadshot) []int64 {
	var ids []int64
	for _, h := range hs {
		if h.IsSelected {
			ids = append(ids, h.ID)
		}
	}
	return ids
}

func TestSelectHeadshot_SwitchesWithinJob(t *testing.T) {
	env := newTestEnv(t, mock.NewMockGenerator(nil))
	ctx := context.Background()
	user, upload := env.createOwner(t, "alice@example.com")
	job := completedJob(t, env, user.ID, upload.ID, []int64{1, 2, 3})
	other := completedJob(t, env, user.ID, upload.ID, []int64{1})

	hs := env.headshots(t, job.ID)
	otherHs := env.headshots(t, other.ID)

	_, err := env.svc.SelectHeadshot(ctx, user.ID, otherHs[0].ID)
	require.NoError(t, err)
	_, err = env.svc.SelectHeadshot(ctx, user.ID, hs[0].ID)
	require.NoError(t, err)
	got, err := env.svc.SelectHeadshot(ctx, user.ID, hs[2].ID)
	require.NoError(t, err)
	assert.True(t, got.IsSelected)

	assert.Equal(t, []int64{hs[2].ID}, selectedIDs(env.headshots(t, job.ID)))
	// Selection in another job is untouched.
	assert.Equal(t, []int64{otherHs[0].ID}, selectedIDs(env.headshots(t, other.ID)))

	selected, err := env.svc.ListUserSelectedHeadshots(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, selected, 2)
}

func TestSelectHeadshot_ReselectIsIdempotent(t *testing.T) {
	env := newTestEnv(t, mock.NewMockGenerator(nil))
	ctx := context.Background()
	user, upload := env.createOwner(t, "alice@example.com")
	job := completedJob(t, env, user.ID, upload.ID, []int64{1, 2})
	hs := env.headshots(t, job.ID)

	for i := 0; i < 3; i++ {
		_, err := env.svc.SelectHeadshot(ctx, user.ID, hs[1].ID)
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{hs[1].ID}, selectedIDs(env.headshots(t, job.ID)))
}

func TestSelectHeadshot_OtherUsersHeadshotNotFound(t *testing.T) {
	env := newTestEnv(t, mock.NewMockGenerator(nil))
	ctx := context.Background()
	owner, upload := env.createOwner(t, "owner@example.com")
	intruder, _ := env.createOwner(t, "intruder@example.com")
	job := completedJob(t, env, owner.ID, upload.ID, []int64{1, 2})
	hs := env.headshots(t, job.ID)

	_, err := env.svc.SelectHeadshot(ctx, intruder.ID, hs[0].ID)
	assert.ErrorIs(t, err, generation.ErrHeadshotNotFound)
	assert.ErrorIs(t, err, generation.ErrNotFound)
	assert.Empty(t, selectedIDs(env.headshots(t, job.ID)))

	_, err = env.svc.SelectHeadshot(ctx, owner.ID, 4242)
	assert.ErrorIs(t, err, generation.ErrHeadshotNotFound)
}

func TestSelectHeadshot_DoesNotGateOnStatus(t *testing.T) {
	env := newTestEnv(t, failStylesGenerator(map[int64]string{2: "bad input"}))
	ctx := context.Background()
	user, upload := env.createOwner(t, "alice@example.com")
	job := completedJob(t, env, user.ID, upload.ID, []int64{1, 2})

	var failed *models.GeneratedHeadshot
	for _, h := range env.headshots(t, job.ID) {
		if h.GenerationStatus == models.HeadshotStatusFailed {
			failed = h
		}
	}
	require.NotNil(t, failed)

	got, err := env.svc.SelectHeadshot(ctx, user.ID, failed.ID)
	require.NoError(t, err)
	assert.True(t, got.IsSelected)
}

func TestSelectHeadshot_ConcurrentLeavesExactlyOne(t *testing.T) {
	env := newTestEnv(t, mock.NewMockGenerator(nil))
	ctx := context.Background()
	user, upload := env.createOwner(t, "alice@example.com")
	job := completedJob(t, env, user.ID, upload.ID, []int64{1, 2, 3, 4})
	hs := env.headshots(t, job.ID)

	var wg sync.WaitGroup
	for round := 0; round < 5; round++ {
		for _, h := range hs {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_, err := env.svc.SelectHeadshot(ctx, user.ID, id)
				assert.NoError(t, err)
			}(h.ID)
		}
	}
	wg.Wait()

	assert.Len(t, selectedIDs(env.headshots(t, job.ID)), 1)
}
