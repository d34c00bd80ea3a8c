package loader

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/nucleus/runtime/lifecycle"
	"github.com/conduit-lang/nucleus/runtime/symbols"
	"github.com/conduit-lang/nucleus/runtime/tags"
)

type sceneBase struct{}
type objectBase struct{}
type viewBase struct{}
type componentBase struct{}

type Hit struct{ Damage int }

var hitType = reflect.TypeOf(&Hit{})

type PlayerObject struct {
	objectBase
	hits   []int
	events []int32
}

func (p *PlayerObject) OnHit(id int32, hit *Hit) error {
	if hit == nil {
		return errors.New("no hit")
	}
	p.hits = append(p.hits, hit.Damage)
	return nil
}
func (p *PlayerObject) OnAnyEvent(id int32)           { p.events = append(p.events, id) }
func (p *PlayerObject) OnBad(hit *Hit)                {}
func (p *PlayerObject) OnMove(op int32, payload any)  {}
func (p *PlayerObject) OnPing(op int32) (bool, error) { return true, nil }

func (*PlayerObject) Annotations() symbols.Annotations {
	return symbols.Annotations{
		Class: symbols.Tags{tags.Object{Category: 3}},
		Methods: map[string]symbols.Tags{
			"OnHit":      {tags.Subscribe{Event: 1, Payload: hitType}},
			"OnAnyEvent": {tags.Subscribe{Any: true, Phase: lifecycle.Start}},
			"OnBad":      {tags.Subscribe{Event: 2, Payload: hitType}},
			"OnMove":     {tags.Handle{Opcode: 7, Payload: hitType}},
			"OnPing":     {tags.Handle{Opcode: 8}},
		},
	}
}

type NamedObject struct{ objectBase }

func (*NamedObject) Annotations() symbols.Annotations {
	return symbols.Annotations{Class: symbols.Tags{tags.Object{Name: "Player", Category: 9}}}
}

type MoveComponent struct{ componentBase }

type Component struct{ componentBase }

type LobbyScene struct{ sceneBase }

func (*LobbyScene) Annotations() symbols.Annotations {
	return symbols.Annotations{Class: symbols.Tags{
		tags.Scene{Name: "Lobby"},
		tags.AutoDisplay{Views: []string{"Hud", "Chat"}},
		tags.AutoDisplay{Views: []string{"Map"}},
	}}
}

type HudView struct{ viewBase }

func (*HudView) Annotations() symbols.Annotations {
	return symbols.Annotations{Class: symbols.Tags{
		tags.Symbiosis{Group: "hud"},
		tags.Symbiosis{Group: "overlay"},
		tags.ViewOptions{Cached: true, Masked: true},
	}}
}

type fixture struct {
	registry   *Registry
	extractor  *symbols.Extractor
	scenes     *CategoryLoader[*SceneInfo]
	objects    *CategoryLoader[*ObjectInfo]
	views      *CategoryLoader[*ViewInfo]
	components *CategoryLoader[*ComponentInfo]
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		registry:   NewRegistry(nil),
		extractor:  symbols.NewExtractor(nil, nil),
		scenes:     NewSceneLoader(nil, opts),
		objects:    NewObjectLoader(nil, opts),
		views:      NewViewLoader(nil, opts),
		components: NewComponentLoader(nil, opts),
	}
	f.registry.Register(reflect.TypeOf(sceneBase{}), f.scenes)
	f.registry.Register(reflect.TypeOf(objectBase{}), f.objects)
	f.registry.Register(reflect.TypeOf(viewBase{}), f.views)
	f.registry.Register(reflect.TypeOf(componentBase{}), f.components)
	return f
}

func (f *fixture) class(t *testing.T, v any) *symbols.SymClass {
	t.Helper()
	class, err := f.extractor.ExtractValue(v)
	require.NoError(t, err)
	return class
}

func TestRegistry_LoadObject(t *testing.T) {
	f := newFixture(Options{})
	class := f.class(t, &PlayerObject{})

	require.True(t, f.registry.Load(class, false))

	info, ok := f.registry.Lookup(class).(*ObjectInfo)
	require.True(t, ok)
	assert.Equal(t, "Player", info.Name)
	assert.Equal(t, CategoryObject, info.Category)
	assert.Equal(t, 3, info.FunctionalCategory)
	assert.Same(t, class, info.Class)

	require.Len(t, info.Events, 2, "the malformed OnBad binding is skipped")
	assert.Equal(t, "OnAnyEvent", info.Events[0].Method.Name)
	assert.True(t, info.Events[0].Any)
	assert.Equal(t, "OnHit", info.Events[1].Method.Name)
	assert.Equal(t, int32(1), info.Events[1].Event)

	require.Len(t, info.Messages, 1, "OnPing returns two values and is skipped")
	assert.Equal(t, int32(7), info.Messages[0].Opcode)

	base, ok := f.registry.CategoryOf(class)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(objectBase{}), base)
}

func TestRegistry_CategoryBaseNeverLoadsItself(t *testing.T) {
	f := newFixture(Options{})
	class := f.class(t, &objectBase{})

	assert.False(t, f.registry.Load(class, false))
	assert.Nil(t, f.registry.Lookup(class))
	assert.Equal(t, 0, f.objects.Len())
}

func TestRegistry_UnrelatedClass(t *testing.T) {
	f := newFixture(Options{})
	assert.False(t, f.registry.Load(f.class(t, &Hit{}), false))
	assert.False(t, f.registry.Load(nil, false))
	assert.Nil(t, f.registry.Lookup(nil))
}

func TestRegistry_NameUniqueness(t *testing.T) {
	f := newFixture(Options{})
	player := f.class(t, &PlayerObject{})
	named := f.class(t, &NamedObject{})

	require.True(t, f.registry.Load(player, false))
	assert.False(t, f.registry.Load(named, false), "display name Player is taken")
	assert.False(t, f.registry.Load(player, false), "a class loads once without reload")

	require.True(t, f.registry.Load(named, true))
	assert.Nil(t, f.registry.Lookup(player), "the displaced class loses its record")

	info, ok := f.objects.Get("Player")
	require.True(t, ok)
	assert.Same(t, named, info.Class)
	assert.Equal(t, 9, info.FunctionalCategory)
	assert.Equal(t, 1, f.objects.Len())
}

func TestRegistry_ReloadReplacesRecord(t *testing.T) {
	f := newFixture(Options{})
	class := f.class(t, &PlayerObject{})
	require.True(t, f.registry.Load(class, false))
	before := f.registry.Lookup(class)

	class = f.class(t, &PlayerObject{})
	require.True(t, f.registry.Load(class, true))
	after := f.registry.Lookup(class)

	assert.NotSame(t, before, after)
	assert.Equal(t, 1, f.objects.Len())
}

func TestRegistry_SceneAndView(t *testing.T) {
	f := newFixture(Options{})

	scene := f.class(t, &LobbyScene{})
	require.True(t, f.registry.Load(scene, false))
	sceneInfo := f.registry.Lookup(scene).(*SceneInfo)
	assert.Equal(t, "Lobby", sceneInfo.Name)
	assert.Equal(t, []string{"Hud", "Chat", "Map"}, sceneInfo.AutoDisplay)

	view := f.class(t, &HudView{})
	require.True(t, f.registry.Load(view, false))
	viewInfo := f.registry.Lookup(view).(*ViewInfo)
	assert.Equal(t, "Hud", viewInfo.Name)
	assert.Equal(t, []string{"hud", "overlay"}, viewInfo.Groups)
	assert.True(t, viewInfo.Cached)
	assert.True(t, viewInfo.Masked)
}

func TestRegistry_ComponentNames(t *testing.T) {
	f := newFixture(Options{})

	move := f.class(t, &MoveComponent{})
	require.True(t, f.registry.Load(move, false))
	assert.Equal(t, "Move", f.registry.Lookup(move).Base().Name)

	bare := f.class(t, &Component{})
	require.True(t, f.registry.Load(bare, false))
	assert.Equal(t, "Component", f.registry.Lookup(bare).Base().Name)

	names := make([]string, 0)
	for _, info := range f.components.All() {
		names = append(names, info.Base().Name)
	}
	assert.Equal(t, []string{"Component", "Move"}, names)
}

func TestRegistry_StrictBindings(t *testing.T) {
	f := newFixture(Options{StrictBindings: true})
	assert.False(t, f.registry.Load(f.class(t, &PlayerObject{}), false))
	assert.Equal(t, 0, f.objects.Len())
}

func TestRegistry_Cleanup(t *testing.T) {
	f := newFixture(Options{})
	require.True(t, f.registry.Load(f.class(t, &PlayerObject{}), false))
	require.True(t, f.registry.Load(f.class(t, &HudView{}), false))

	f.registry.Cleanup()
	assert.Equal(t, 0, f.objects.Len())
	assert.Equal(t, 0, f.views.Len())
}

func TestRegistry_DuplicateCallbackReplaced(t *testing.T) {
	r := NewRegistry(nil)
	base := reflect.TypeOf(objectBase{})
	var calls []string
	r.RegisterLoad(base, func(*symbols.SymClass, bool) bool { calls = append(calls, "first"); return true })
	r.RegisterLoad(base, func(*symbols.SymClass, bool) bool { calls = append(calls, "second"); return true })

	class, err := symbols.NewExtractor(nil, nil).ExtractValue(&NamedObject{})
	require.NoError(t, err)
	assert.True(t, r.Load(class, false))
	assert.Equal(t, []string{"second"}, calls)
	assert.Equal(t, []reflect.Type{base}, r.Categories())
}

func TestBindings_Invoke(t *testing.T) {
	f := newFixture(Options{})
	class := f.class(t, &PlayerObject{})
	require.True(t, f.registry.Load(class, false))
	info := f.registry.Lookup(class).Base()

	player := &PlayerObject{}
	for _, b := range info.EventsFor(1) {
		require.NoError(t, b.Invoke(player, 1, &Hit{Damage: 5}))
	}
	assert.Equal(t, []int{5}, player.hits)
	assert.Equal(t, []int32{1}, player.events)

	assert.Len(t, info.EventsFor(42), 1, "only the catch-all receives unknown events")

	hit := info.EventsFor(1)[1]
	err := hit.Invoke(player, 1, nil)
	assert.EqualError(t, err, "no hit", "handler errors are returned")

	err = hit.Invoke(player, 1, "not a hit")
	assert.ErrorIs(t, err, ErrInvoke)

	err = hit.Invoke(&Hit{}, 1, &Hit{})
	assert.ErrorIs(t, err, ErrInvoke)

	require.Len(t, info.MessagesFor(7), 1)
	assert.NoError(t, info.MessagesFor(7)[0].Invoke(player, 7, &Hit{}))
	assert.Empty(t, info.MessagesFor(99))
}

func TestValidateShape(t *testing.T) {
	method := func(params []reflect.Type, returns []reflect.Type, variadic bool) *symbols.SymMethod {
		m := &symbols.SymMethod{Name: "M", Variadic: variadic, Returns: returns}
		for i, p := range params {
			m.Params = append(m.Params, symbols.SymParam{Index: i, Type: p})
		}
		return m
	}
	anyType := reflect.TypeOf((*any)(nil)).Elem()

	tests := []struct {
		name    string
		method  *symbols.SymMethod
		payload reflect.Type
		wantErr bool
	}{
		{"id only", method([]reflect.Type{idType}, nil, false), nil, false},
		{"id and payload", method([]reflect.Type{idType, hitType}, nil, false), hitType, false},
		{"payload into interface", method([]reflect.Type{idType, anyType}, []reflect.Type{errorType}, false), hitType, false},
		{"missing payload", method([]reflect.Type{idType}, nil, false), hitType, true},
		{"unexpected payload", method([]reflect.Type{idType, hitType}, nil, false), nil, true},
		{"wrong id type", method([]reflect.Type{reflect.TypeOf(0)}, nil, false), nil, true},
		{"wrong payload type", method([]reflect.Type{idType, reflect.TypeOf("")}, nil, false), hitType, true},
		{"non-error return", method([]reflect.Type{idType}, []reflect.Type{reflect.TypeOf(0)}, false), nil, true},
		{"variadic", method([]reflect.Type{idType, reflect.TypeOf([]int{})}, nil, true), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateShape(tt.method, tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedBinding)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStripSuffix(t *testing.T) {
	tests := []struct {
		name, suffix, want string
	}{
		{"FooComponent", "Component", "Foo"},
		{"Component", "Component", "Component"},
		{"Foo", "Component", "Foo"},
		{"BattleScene", "Scene", "Battle"},
		{"ComponentView", "Component", "ComponentView"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripSuffix(tt.name, tt.suffix), tt.name)
	}
}
