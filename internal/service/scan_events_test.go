package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/models"
)

func TestScanEventServiceDeliversToLocalSubscribers(t *testing.T) {
	svc := NewScanEventService(nil, nil, "optimark", testLogger())

	all, cancelAll := svc.Subscribe(0)
	defer cancelAll()
	filtered, cancelFiltered := svc.Subscribe(7)
	defer cancelFiltered()

	svc.PublishScanEvent(testCtx, dto.ScanEvent{ScanID: 1, ExamID: 7, Status: models.ScanStatusProcessed})
	svc.PublishScanEvent(testCtx, dto.ScanEvent{ScanID: 2, ExamID: 8, Status: models.ScanStatusNeedsReview})

	received := collectEvents(t, all, 2)
	require.EqualValues(t, 1, received[0].ScanID)
	require.EqualValues(t, 2, received[1].ScanID)

	filteredEvents := collectEvents(t, filtered, 1)
	require.EqualValues(t, 7, filteredEvents[0].ExamID)

	select {
	case extra := <-filtered:
		t.Fatalf("subscriber for exam 7 received event for exam %d", extra.ExamID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScanEventServiceCancelClosesChannel(t *testing.T) {
	svc := NewScanEventService(nil, nil, "optimark", testLogger())

	events, cancel := svc.Subscribe(0)
	cancel()

	_, open := <-events
	require.False(t, open)
}

func TestScanEventServiceRelaysAcrossNodesViaRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = clientA.Close()
		_ = clientB.Close()
	})

	nodeA := NewScanEventService(clientA, nil, "optimark", testLogger())
	nodeB := NewScanEventService(clientB, nil, "optimark", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	// Give the pub/sub consumers a moment to attach.
	time.Sleep(100 * time.Millisecond)

	remote, cancelRemote := nodeB.Subscribe(0)
	defer cancelRemote()
	local, cancelLocal := nodeA.Subscribe(0)
	defer cancelLocal()

	nodeA.PublishScanEvent(testCtx, dto.ScanEvent{ScanID: 5, ExamID: 3, Status: models.ScanStatusProcessed})

	relayed := collectEvents(t, remote, 1)
	require.EqualValues(t, 5, relayed[0].ScanID)
	require.Equal(t, models.ScanStatusProcessed, relayed[0].Status)

	// The publishing node sees exactly one copy: its broker delivery, with
	// the redis echo suppressed.
	own := collectEvents(t, local, 1)
	require.EqualValues(t, 5, own[0].ScanID)
	select {
	case <-local:
		t.Fatal("publishing node received its own event twice")
	case <-time.After(150 * time.Millisecond):
	}
}

func collectEvents(t *testing.T, ch <-chan dto.ScanEvent, count int) []dto.ScanEvent {
	t.Helper()
	events := make([]dto.ScanEvent, 0, count)
	timeout := time.After(2 * time.Second)
	for len(events) < count {
		select {
		case event := <-ch:
			events = append(events, event)
		case <-timeout:
			t.Fatalf("expected %d events, got %d", count, len(events))
		}
	}
	return events
}
