package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/service/scheduler"
)

func TestScheduler(t *testing.T) {
	t.Run("runs job with the start context", func(t *testing.T) {
		s := scheduler.New()
		called := make(chan context.Context, 1)
		gt.NoError(t, s.Add("probe", "@every 1s", func(ctx context.Context) {
			select {
			case called <- ctx:
			default:
			}
		}))

		s.Start(context.Background())
		select {
		case ctx := <-called:
			gt.NoError(t, ctx.Err())
		case <-time.After(3 * time.Second):
			t.Fatal("job was not run")
		}

		s.Stop()
	})

	t.Run("stop cancels running job", func(t *testing.T) {
		s := scheduler.New()
		started := make(chan struct{})
		var finished atomic.Bool
		gt.NoError(t, s.Add("slow", "@every 1s", func(ctx context.Context) {
			select {
			case started <- struct{}{}:
			default:
				return
			}
			<-ctx.Done()
			finished.Store(true)
		}))

		s.Start(context.Background())
		select {
		case <-started:
		case <-time.After(3 * time.Second):
			t.Fatal("job was not run")
		}
		s.Stop()
		gt.True(t, finished.Load())
	})

	t.Run("invalid spec", func(t *testing.T) {
		s := scheduler.New()
		gt.Error(t, s.Add("broken", "every minute", func(ctx context.Context) {}))
	})
}

type mockDocuments struct {
	state       model.EngineState
	initialized int
}

func (m *mockDocuments) Status() model.EngineStatus {
	return model.EngineStatus{State: m.state}
}

func (m *mockDocuments) Initialize(ctx context.Context) *model.RunResult {
	m.initialized++
	m.state = model.StateAvailable
	return &model.RunResult{Status: model.RunCompleted, Entries: 4}
}

func TestReconnectDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("unavailable engine is initialized", func(t *testing.T) {
		m := &mockDocuments{state: model.StateUnavailable}
		scheduler.ReconnectDocuments(m)(ctx)
		gt.Equal(t, m.initialized, 1)
	})

	t.Run("indexing engine is left alone", func(t *testing.T) {
		m := &mockDocuments{state: model.StateIndexing}
		scheduler.ReconnectDocuments(m)(ctx)
		gt.Equal(t, m.initialized, 0)
	})
}

type mockMemory struct {
	state      model.EngineState
	connectOK  bool
	connects   int
	backfilled int
}

func (m *mockMemory) Status() model.EngineStatus {
	return model.EngineStatus{State: m.state}
}

func (m *mockMemory) Connect(ctx context.Context) bool {
	m.connects++
	if m.connectOK {
		m.state = model.StateAvailable
	}
	return m.connectOK
}

func (m *mockMemory) Backfill(ctx context.Context) int {
	m.backfilled++
	return 2
}

func TestBackfillMemories(t *testing.T) {
	ctx := context.Background()

	t.Run("available engine backfills without reconnecting", func(t *testing.T) {
		m := &mockMemory{state: model.StateAvailable}
		scheduler.BackfillMemories(m)(ctx)
		gt.Equal(t, m.connects, 0)
		gt.Equal(t, m.backfilled, 1)
	})

	t.Run("reconnect then backfill", func(t *testing.T) {
		m := &mockMemory{state: model.StateUnavailable, connectOK: true}
		scheduler.BackfillMemories(m)(ctx)
		gt.Equal(t, m.connects, 1)
		gt.Equal(t, m.backfilled, 1)
	})

	t.Run("backend still down", func(t *testing.T) {
		m := &mockMemory{state: model.StateUnavailable}
		scheduler.BackfillMemories(m)(ctx)
		gt.Equal(t, m.connects, 1)
		gt.Equal(t, m.backfilled, 0)
	})
}

type mockSchema struct {
	refreshFn func(ctx context.Context) (*model.RunResult, error)
	calls     int
}

func (m *mockSchema) Refresh(ctx context.Context) (*model.RunResult, error) {
	m.calls++
	return m.refreshFn(ctx)
}

func TestRefreshSchema(t *testing.T) {
	m := &mockSchema{refreshFn: func(ctx context.Context) (*model.RunResult, error) {
		return &model.RunResult{Status: model.RunFailed}, goerr.New("connection refused")
	}}
	scheduler.RefreshSchema(m)(context.Background())
	gt.Equal(t, m.calls, 1)
}
