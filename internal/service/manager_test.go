package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-console/internal/events"
	"github.com/spec-kit/support-console/internal/observability"
)

func newTestManager() (*Manager, *[]*fakeSource) {
	created := &[]*fakeSource{}
	m := NewManager(ManagerDeps{
		Gateway: &fakeGateway{},
		Sources: func(events.Handler) EventSource {
			source := &fakeSource{}
			*created = append(*created, source)
			return source
		},
		Logger:  zap.NewNop(),
		Metrics: observability.NewMetrics(),
	})
	return m, created
}

func TestManagerLifecycle(t *testing.T) {
	m, created := newTestManager()

	session, err := m.Open(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	found, ok := m.Get(session.ID())
	require.True(t, ok)
	assert.Same(t, session, found)

	assert.True(t, m.Close(session.ID()))
	assert.False(t, m.Close(session.ID()))
	assert.Equal(t, 0, m.Len())
	require.Len(t, *created, 1)
	assert.True(t, (*created)[0].stopped)
}

func TestManagerCloseAllStopsEverySubscription(t *testing.T) {
	m, created := newTestManager()

	_, err := m.Open(context.Background())
	require.NoError(t, err)
	_, err = m.Open(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	m.CloseAll()
	assert.Equal(t, 0, m.Len())
	require.Len(t, *created, 2)
	for _, source := range *created {
		assert.True(t, source.stopped)
	}
}
