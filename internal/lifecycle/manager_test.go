package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	name       string
	startCount int
	stopCount  int
	startErr   error
	readyErr   error
}

func (m *mockService) Name() string { return m.name }

func (m *mockService) Start(context.Context) error {
	m.startCount++
	return m.startErr
}

func (m *mockService) Stop(context.Context) error {
	m.stopCount++
	return nil
}

func (m *mockService) Ready(context.Context) error { return m.readyErr }

func TestManagerStartStopOrder(t *testing.T) {
	mgr := NewManager()
	services := []*mockService{{name: "a"}, {name: "b"}, {name: "c"}}
	for _, svc := range services {
		require.NoError(t, mgr.Register(svc))
	}

	require.NoError(t, mgr.Start(context.Background()))
	require.NoError(t, mgr.Stop(context.Background()))

	for _, svc := range services {
		assert.Equal(t, 1, svc.startCount)
		assert.Equal(t, 1, svc.stopCount)
	}
}

func TestManagerRollbackOnStartFailure(t *testing.T) {
	mgr := NewManager()
	good := &mockService{name: "good"}
	bad := &mockService{name: "bad", startErr: errors.New("boom")}

	require.NoError(t, mgr.Register(good))
	require.NoError(t, mgr.Register(bad))

	err := mgr.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, good.stopCount, "started service must be rolled back")
	assert.Equal(t, 0, bad.stopCount, "failed service was never started, nothing to stop")
}

func TestManagerRegisterAfterStartRejected(t *testing.T) {
	mgr := NewManager()
	require.NoError(t, mgr.Register(&mockService{name: "a"}))
	require.NoError(t, mgr.Start(context.Background()))

	err := mgr.Register(&mockService{name: "late"})
	assert.Error(t, err)
}

func TestManagerStopIsIdempotent(t *testing.T) {
	mgr := NewManager()
	svc := &mockService{name: "a"}
	require.NoError(t, mgr.Register(svc))
	require.NoError(t, mgr.Start(context.Background()))

	require.NoError(t, mgr.Stop(context.Background()))
	require.NoError(t, mgr.Stop(context.Background()))
	assert.Equal(t, 1, svc.stopCount, "second Stop must be a no-op")
}

func TestManagerReadyAggregatesCheckers(t *testing.T) {
	mgr := NewManager()
	ok := &mockService{name: "ok"}
	notReady := &mockService{name: "not-ready", readyErr: errors.New("still hydrating")}
	require.NoError(t, mgr.Register(ok))
	require.NoError(t, mgr.Register(notReady))

	err := mgr.Ready(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-ready")
}

func TestManagerNamesReflectsRegistrationOrder(t *testing.T) {
	mgr := NewManager()
	require.NoError(t, mgr.Register(&mockService{name: "first"}))
	require.NoError(t, mgr.Register(&mockService{name: "second"}))
	assert.Equal(t, []string{"first", "second"}, mgr.Names())
}
