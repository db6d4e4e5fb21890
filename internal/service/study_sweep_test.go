package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/insight-lab/research-go-api/internal/models"
)

type recordingStudyRepo struct {
	sweeps chan time.Time
	err    error
}

func (r *recordingStudyRepo) GetByID(ctx context.Context, id uint) (models.Study, error) {
	return models.Study{}, nil
}

func (r *recordingStudyRepo) AdvanceLifecycle(ctx context.Context, now time.Time) (int64, error) {
	select {
	case r.sweeps <- now:
	default:
	}
	return 1, r.err
}

func TestStudySweeperSweepsImmediatelyAndOnTick(t *testing.T) {
	repo := &recordingStudyRepo{sweeps: make(chan time.Time, 4)}
	sweeper := NewStudySweeper(repo, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-repo.sweeps:
		case <-time.After(time.Second):
			t.Fatal("sweep did not run in time")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

func TestStudySweeperDefaultsInterval(t *testing.T) {
	sweeper := NewStudySweeper(&recordingStudyRepo{sweeps: make(chan time.Time, 1)}, 0, testLogger())
	require.Equal(t, time.Hour, sweeper.interval)
}
