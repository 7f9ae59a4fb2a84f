package generation_test

import (
	"context"
	"testing"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generation"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generator/mock"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func jobIDs(jobs []*models.GenerationJob) []int64 {
	ids := make([]int64, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}

func TestListUserJobs_Paging(t *testing.T) {
	env := newTestEnv(t, mock.NewMockGenerator(nil))
	ctx := context.Background()
	user, upload := env.createOwner(t, "alice@example.com")
	other, otherUpload := env.createOwner(t, "bob@example.com")

	var created []*models.GenerationJob
	for i := 0; i < 3; i++ {
		job, err := env.svc.CreateJob(ctx, user.ID, upload.ID, []int64{1})
		require.NoError(t, err)
		created = append(created, job)
	}
	_, err := env.svc.CreateJob(ctx, other.ID, otherUpload.ID, []int64{1})
	require.NoError(t, err)

	tests := []struct {
		name   string
		limit  *int
		offset *int
		want   []int64
	}{
		{"all", nil, nil, []int64{created[2].ID, created[1].ID, created[0].ID}},
		{"limit 2 offset 1", intPtr(2), intPtr(1), []int64{created[1].ID, created[0].ID}},
		{"limit only", intPtr(1), nil, []int64{created[2].ID}},
		{"offset only", nil, intPtr(2), []int64{created[0].ID}},
		{"offset past end", intPtr(5), intPtr(3), []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := env.svc.ListUserJobs(ctx, user.ID, tt.limit, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, jobIDs(jobs))
		})
	}
}

func TestListUserJobs_RejectsNegativePaging(t *testing.T) {
	env := newTestEnv(t, mock.NewMockGenerator(nil))
	_, err := env.svc.ListUserJobs(context.Background(), 1, intPtr(-1), nil)
	assert.ErrorIs(t, err, generation.ErrValidation)
	_, err = env.svc.ListUserJobs(context.Background(), 1, nil, intPtr(-1))
	assert.ErrorIs(t, err, generation.ErrValidation)
}

func TestListJobHeadshots_UnknownJobIsEmpty(t *testing.T) {
	env := newTestEnv(t, mock.NewMockGenerator(nil))
	hs, err := env.svc.ListJobHeadshots(context.Background(), 4242)
	require.NoError(t, err)
	assert.NotNil(t, hs)
	assert.Empty(t, hs)
}

func TestListJobHeadshots_OrderedByID(t *testing.T) {
	env := newTestEnv(t, mock.NewMockGenerator(nil))
	user, upload := env.createOwner(t, "alice@example.com")
	job := completedJob(t, env, user.ID, upload.ID, []int64{4, 2, 3})

	hs := env.headshots(t, job.ID)
	require.Len(t, hs, 3)
	for i := 1; i < len(hs); i++ {
		assert.Less(t, hs[i-1].ID, hs[i].ID)
	}
}

func TestListUserSelectedHeadshots_EmptyForNewUser(t *testing.T) {
	env := newTestEnv(t, mock.NewMockGenerator(nil))
	user, _ := env.createOwner(t, "alice@example.com")

	hs, err := env.svc.ListUserSelectedHeadshots(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, hs)
	assert.Empty(t, hs)
}
