package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cinelive/domain"
	"cinelive/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestIdleReaper_Tears_Down_Idle_Connections(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mocks.NewMockIRegistry(ctrl)

	// Given one connection reported idle on the first scan, then none
	first := registry.EXPECT().
		IdleConnections(time.Minute).
		Return([]domain.ConnectionID{"stale-1"})
	registry.EXPECT().
		IdleConnections(time.Minute).
		Return(nil).
		AnyTimes().
		After(first)

	var mu sync.Mutex
	var reaped []domain.ConnectionID
	teardown := func(ctx context.Context, connID domain.ConnectionID) {
		mu.Lock()
		defer mu.Unlock()
		reaped = append(reaped, connID)
	}

	worker := NewIdleReaperWorker(log, registry, time.Minute, 20*time.Millisecond, teardown)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Then the stale connection goes through the teardown cascade
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reaped) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	req.NoError(<-done)

	mu.Lock()
	defer mu.Unlock()
	req.Equal([]domain.ConnectionID{"stale-1"}, reaped)
}
