package entity

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/nucleus/runtime/lifecycle"
)

type scheduler struct{ *lifecycle.Dispatcher }

func (s scheduler) RegisterPhaseNotification(phase lifecycle.Phase, instance any) bool {
	return s.Enqueue(phase, instance)
}

func (s scheduler) CancelPhaseNotification(phase lifecycle.Phase, instance any) bool {
	return s.Cancel(phase, instance)
}

type Lobby struct{ Scene }
type Goblin struct{ Object }
type Hud struct{ View }
type Health struct{ Component }
type Armor struct{ Component }

func newWorld() (*World, *lifecycle.Dispatcher) {
	d := lifecycle.NewDispatcher(nil)
	return NewWorld(scheduler{d}, nil), d
}

func TestWorld_Create(t *testing.T) {
	w, d := newWorld()
	lobby, goblin, hud := &Lobby{}, &Goblin{}, &Hud{}

	require.NoError(t, w.Create(lobby, "lobby"))
	require.NoError(t, w.Create(goblin, "goblin"))
	require.NoError(t, w.Create(hud, "hud"))

	assert.NotEqual(t, uuid.Nil, goblin.ID())
	assert.Equal(t, "goblin", goblin.Label())
	assert.Equal(t, []any{lobby, goblin, hud}, d.PendingInstances(lifecycle.Start))
	assert.Equal(t, []any{lobby}, w.Scenes())
	assert.Equal(t, []any{goblin}, w.Objects())
	assert.Equal(t, []any{hud}, w.Views())
	assert.True(t, w.Tracked(goblin))
	assert.False(t, w.IsStarted(goblin))

	assert.ErrorIs(t, w.Create(goblin, "again"), ErrAlreadyTracked)
	assert.ErrorIs(t, w.Create(nil, ""), ErrNilInstance)
	assert.ErrorIs(t, w.Create(&struct{ name string }{}, ""), ErrNotEntity)
	assert.ErrorIs(t, w.Create(&Health{}, ""), ErrNotEntity)
}

func TestWorld_AttachAndBegin(t *testing.T) {
	w, d := newWorld()
	goblin := &Goblin{}
	health, armor := &Health{}, &Armor{}

	require.NoError(t, w.Create(goblin, "goblin"))
	require.NoError(t, w.Attach(goblin, health))
	require.NoError(t, w.Attach(health, armor))

	assert.Same(t, goblin, health.Owner())
	assert.Same(t, health, armor.Owner())
	assert.Same(t, goblin, RootOf(armor))
	assert.Equal(t, []any{health, armor}, ComponentsOf(goblin, nil))
	assert.Equal(t, []any{armor}, ComponentsOf(goblin, reflect.TypeOf(Armor{})))
	assert.Equal(t, 3, d.Pending(lifecycle.Start))

	require.NoError(t, w.BeginObject(goblin))
	assert.True(t, w.IsStarted(goblin))
	assert.True(t, w.IsStarted(health), "components attached before start begin with their owner")
	assert.True(t, w.IsStarted(armor))
	assert.Equal(t, []any{goblin}, d.PendingInstances(lifecycle.Start), "their own Start is cancelled")

	require.NoError(t, w.BeginComponent(health), "starting twice is a no-op")
	assert.ErrorIs(t, w.BeginScene(goblin), ErrUnknownInstance)
	assert.ErrorIs(t, w.Attach(&Goblin{}, &Health{}), ErrUnknownInstance)
	assert.ErrorIs(t, w.Attach(goblin, health), ErrAlreadyTracked)
}

func TestWorld_Adopt(t *testing.T) {
	w, d := newWorld()
	goblin := &Goblin{}
	health, armor := &Health{}, &Armor{}

	require.NoError(t, w.Create(goblin, "goblin"))
	require.NoError(t, w.Adopt(goblin, health))
	assert.Same(t, goblin, health.Owner())
	assert.Equal(t, lifecycle.NotScheduled, d.State(lifecycle.Start, health))
	assert.Equal(t, []any{goblin}, d.PendingInstances(lifecycle.Start))

	require.NoError(t, w.BeginObject(goblin))
	assert.True(t, w.IsStarted(health), "an adopted component begins with its owner")

	require.NoError(t, w.Adopt(goblin, armor))
	assert.True(t, w.IsStarted(armor), "adopted by a started owner it begins at once")
	assert.Equal(t, 1, d.Pending(lifecycle.Start))

	assert.ErrorIs(t, w.Adopt(&Goblin{}, &Health{}), ErrUnknownInstance)
	assert.ErrorIs(t, w.Adopt(goblin, health), ErrAlreadyTracked)
}

func TestWorld_DestroyEntity(t *testing.T) {
	w, d := newWorld()
	goblin := &Goblin{}
	health, armor := &Health{}, &Armor{}
	require.NoError(t, w.Create(goblin, "goblin"))
	require.NoError(t, w.Attach(goblin, health))
	require.NoError(t, w.Attach(health, armor))
	require.NoError(t, w.BeginObject(goblin))

	require.NoError(t, w.Destroy(goblin))
	assert.True(t, w.IsDestroying(goblin))
	assert.True(t, w.IsDestroying(armor))
	assert.Equal(t, []any{goblin, health, armor}, d.PendingInstances(lifecycle.Destroy))
	assert.Equal(t, 0, d.Pending(lifecycle.Start), "destroy pre-empts the pending start")
	require.NoError(t, w.Destroy(goblin), "destroying twice is a no-op")
	assert.Equal(t, 3, d.Pending(lifecycle.Destroy))

	require.NoError(t, w.RemoveObject(goblin))
	assert.Equal(t, 0, d.Pending(lifecycle.Destroy), "removed components lose their pending destroy")
	assert.Empty(t, w.Objects())
	assert.Empty(t, w.Components())
	assert.Empty(t, goblin.AttachedComponents())
	assert.False(t, w.IsDestroying(goblin))
	assert.False(t, w.Tracked(health))

	assert.ErrorIs(t, w.RemoveObject(goblin), ErrUnknownInstance)
	assert.ErrorIs(t, w.Destroy(goblin), ErrUnknownInstance)
}

func TestWorld_DestroyComponent(t *testing.T) {
	w, d := newWorld()
	goblin := &Goblin{}
	health, armor := &Health{}, &Armor{}
	require.NoError(t, w.Create(goblin, "goblin"))
	require.NoError(t, w.BeginObject(goblin))
	require.NoError(t, d.Flush(lifecycle.Start))

	require.NoError(t, w.Attach(goblin, health))
	require.NoError(t, w.Destroy(health))
	assert.False(t, w.Tracked(health), "a component that never started is detached at once")
	assert.Empty(t, goblin.AttachedComponents())
	assert.Equal(t, 0, d.Pending(lifecycle.Start))

	require.NoError(t, w.Attach(goblin, armor))
	require.NoError(t, w.BeginComponent(armor))
	require.NoError(t, w.Destroy(armor))
	assert.Equal(t, []any{armor}, d.PendingInstances(lifecycle.Destroy))

	require.NoError(t, w.RemoveComponent(armor))
	assert.Nil(t, armor.Owner())
	assert.Nil(t, RootOf(armor))
	assert.Empty(t, goblin.AttachedComponents())
	assert.ErrorIs(t, w.RemoveComponent(armor), ErrUnknownInstance)
}

func TestWorld_Providers(t *testing.T) {
	w, _ := newWorld()
	lobby, goblin, hud := &Lobby{}, &Goblin{}, &Hud{}
	require.NoError(t, w.Create(lobby, "lobby"))
	require.NoError(t, w.Create(goblin, "goblin"))
	require.NoError(t, w.Create(hud, "hud"))

	providers := w.Providers()
	require.Len(t, providers, 3)
	assert.Equal(t, []any{goblin}, providers[ObjectType](ObjectType))
	assert.Equal(t, []any{goblin}, providers[ObjectType](reflect.TypeOf(Goblin{})))
	assert.Empty(t, providers[SceneType](reflect.TypeOf(Goblin{})))
	assert.Equal(t, []any{hud}, providers[ViewType](ViewType))
}
