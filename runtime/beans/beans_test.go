package beans

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/nucleus/runtime/entity"
	"github.com/conduit-lang/nucleus/runtime/lifecycle"
	"github.com/conduit-lang/nucleus/runtime/symbols"
)

type Sword struct {
	Damage int
	Name   string
}

func (*Sword) Annotations() symbols.Annotations {
	return symbols.Annotations{Beans: []symbols.Bean{
		{Name: "steel", Singleton: true, Fields: []symbols.BeanField{
			{Field: "Damage", Value: 7},
			{Field: "Name", Value: "steel"},
		}},
		{Name: "wood", Fields: []symbols.BeanField{{Field: "Damage", Value: "1"}}},
	}}
}

type Health struct {
	entity.Component
	Max int
}

func (*Health) Annotations() symbols.Annotations {
	return symbols.Annotations{Beans: []symbols.Bean{
		{Name: "default", Fields: []symbols.BeanField{{Field: "Max", Value: 50}}},
	}}
}

type Armor struct {
	entity.Component
	Rating int
}

func (*Armor) Annotations() symbols.Annotations {
	return symbols.Annotations{Beans: []symbols.Bean{
		{
			Name:       "heavy",
			Fields:     []symbols.BeanField{{Field: "Rating", Value: 9}},
			Components: []symbols.BeanComponent{{RefType: "Plate"}},
		},
	}}
}

type Plate struct{ entity.Component }

type Goblin struct {
	entity.Object
	HP     int
	Speed  time.Duration
	Loot   []string
	Weapon *Sword
	Spare  Sword
	Shield *Sword `inject:"shield,optional"`
	Blade  *Sword `inject:"steel"`
}

func (*Goblin) Annotations() symbols.Annotations {
	return symbols.Annotations{Beans: []symbols.Bean{
		{
			Name: "default",
			Fields: []symbols.BeanField{
				{Field: "HP", Value: "30"},
				{Field: "Speed", Value: "1500ms"},
				{Field: "Loot", Value: "gold,gem"},
				{Field: "Weapon", RefType: "Sword", RefName: "steel"},
				{Field: "Spare", RefType: "Sword", RefName: "wood"},
			},
			Components: []symbols.BeanComponent{
				{RefType: "Health", Priority: 10, Phase: "start"},
				{RefType: "Armor", RefName: "heavy", Priority: 5},
			},
		},
	}}
}

type Monster struct {
	entity.Object
	HP int
}

func (*Monster) Annotations() symbols.Annotations {
	return symbols.Annotations{Beans: []symbols.Bean{
		{Name: "elite", Inherit: true, Fields: []symbols.BeanField{{Field: "HP", Value: 100}}},
		{Name: "grunt", Fields: []symbols.BeanField{{Field: "HP", Value: 10}}},
	}}
}

type Troll struct{ Monster }

func (*Troll) Annotations() symbols.Annotations { return symbols.Annotations{} }

type Loop struct{ Next *Loop }

func (*Loop) Annotations() symbols.Annotations {
	return symbols.Annotations{Beans: []symbols.Bean{
		{Name: "loop", Fields: []symbols.BeanField{{Field: "Next", RefType: "Loop", RefName: "loop"}}},
	}}
}

type unknown struct{}

type Needy struct {
	Dep *unknown `inject:"missing"`
}

type Template struct{}

func (*Template) Annotations() symbols.Annotations {
	return symbols.Annotations{Class: symbols.Tags{symbols.Abstract{}}}
}

type Broken struct{ entity.Object }

func (*Broken) Annotations() symbols.Annotations {
	return symbols.Annotations{Beans: []symbols.Bean{
		{Name: "default", Components: []symbols.BeanComponent{{RefType: "Health", Phase: "destroy"}}},
	}}
}

type scheduler struct{ *lifecycle.Dispatcher }

func (s scheduler) RegisterPhaseNotification(phase lifecycle.Phase, instance any) bool {
	return s.Enqueue(phase, instance)
}

func (s scheduler) CancelPhaseNotification(phase lifecycle.Phase, instance any) bool {
	return s.Cancel(phase, instance)
}

func newTable(t *testing.T) *symbols.Table {
	t.Helper()
	e := symbols.NewExtractor(nil, nil)
	_, err := e.ExtractAll(
		reflect.TypeOf(Sword{}), reflect.TypeOf(Health{}), reflect.TypeOf(Armor{}), reflect.TypeOf(Plate{}),
		reflect.TypeOf(Goblin{}), reflect.TypeOf(Monster{}), reflect.TypeOf(Troll{}), reflect.TypeOf(Loop{}),
		reflect.TypeOf(Needy{}), reflect.TypeOf(Template{}), reflect.TypeOf(Broken{}),
	)
	require.NoError(t, err)
	return e.Table()
}

func TestContainer_Get(t *testing.T) {
	c := NewContainer(newTable(t), nil, nil)

	v, err := c.Get("Goblin", "")
	require.NoError(t, err)
	goblin := v.(*Goblin)

	assert.Equal(t, 30, goblin.HP)
	assert.Equal(t, 1500*time.Millisecond, goblin.Speed)
	assert.Equal(t, []string{"gold", "gem"}, goblin.Loot)
	require.NotNil(t, goblin.Weapon)
	assert.Equal(t, 7, goblin.Weapon.Damage)
	assert.Equal(t, "steel", goblin.Weapon.Name)
	assert.Equal(t, 1, goblin.Spare.Damage, "a pointer bean fills a value field with a copy")
	assert.Nil(t, goblin.Shield, "optional injection without a bean stays nil")
	assert.Same(t, goblin.Weapon, goblin.Blade, "singletons are shared")

	other, err := c.Get("Goblin", "default")
	require.NoError(t, err)
	assert.NotSame(t, goblin, other)
	assert.Same(t, goblin.Weapon, other.(*Goblin).Weapon)

	c.Reset()
	steel, err := c.Get("Sword", "steel")
	require.NoError(t, err)
	assert.NotSame(t, goblin.Weapon, steel)
}

func TestContainer_Resolve(t *testing.T) {
	c := NewContainer(newTable(t), nil, nil)

	class, bean, err := c.Resolve("", "wood")
	require.NoError(t, err)
	assert.Equal(t, "Sword", class.Name)
	assert.Equal(t, "wood", bean.Name)

	_, _, err = c.Resolve("", "default")
	assert.ErrorIs(t, err, ErrAmbiguousBean)

	_, _, err = c.Resolve("", "nothing")
	assert.ErrorIs(t, err, ErrNoBean)

	_, _, err = c.Resolve("Dragon", "")
	assert.ErrorIs(t, err, ErrUnknownClass)

	_, bean, err = c.Resolve("Plate", "")
	require.NoError(t, err)
	assert.Empty(t, bean.Name, "a class without beans gets an empty descriptor")

	_, bean, err = c.Resolve("Health", "")
	require.NoError(t, err)
	assert.Equal(t, "default", bean.Name)
}

func TestContainer_InheritedBean(t *testing.T) {
	c := NewContainer(newTable(t), nil, nil)

	v, err := c.Get("Troll", "elite")
	require.NoError(t, err)
	troll, ok := v.(*Troll)
	require.True(t, ok, "the derived class is instantiated")
	assert.Equal(t, 100, troll.HP)

	_, err = c.Get("Troll", "grunt")
	assert.ErrorIs(t, err, ErrNoBean, "beans without inherit stay on their class")
}

func TestContainer_Errors(t *testing.T) {
	c := NewContainer(newTable(t), nil, nil)

	_, err := c.Get("Loop", "loop")
	assert.ErrorIs(t, err, ErrCycle)

	_, err = c.Get("Needy", "")
	assert.ErrorIs(t, err, ErrUnresolved)

	_, err = c.Get("Template", "")
	assert.ErrorIs(t, err, ErrNotInstantiable)

	_, err = c.Spawn("Goblin", "", "g")
	assert.Error(t, err, "spawning needs a spawner")
}

func TestActivation(t *testing.T) {
	scheduled, err := Activation(symbols.BeanComponent{RefType: "Health"})
	require.NoError(t, err)
	assert.False(t, scheduled)

	scheduled, err = Activation(symbols.BeanComponent{RefType: "Health", Phase: "start"})
	require.NoError(t, err)
	assert.True(t, scheduled)

	_, err = Activation(symbols.BeanComponent{RefType: "Health", Phase: "destroy"})
	assert.ErrorIs(t, err, ErrUnsupportedPhase)

	_, err = Activation(symbols.BeanComponent{RefType: "Health", Phase: "later"})
	assert.Error(t, err)
}

func TestContainer_Spawn(t *testing.T) {
	d := lifecycle.NewDispatcher(nil)
	world := entity.NewWorld(scheduler{d}, nil)
	c := NewContainer(newTable(t), world, nil)

	v, err := c.Spawn("Goblin", "", "g1")
	require.NoError(t, err)
	goblin := v.(*Goblin)

	components := world.Components()
	require.Len(t, components, 3)
	armor, ok := components[0].(*Armor)
	require.True(t, ok, "lower priority attaches first")
	assert.Equal(t, 9, armor.Rating)
	assert.IsType(t, &Plate{}, components[1], "nested component beans attach to their component")
	assert.Same(t, armor, components[1].(*Plate).Owner())
	health := components[2].(*Health)
	assert.Equal(t, 50, health.Max)

	assert.Equal(t, []any{armor, health}, goblin.AttachedComponents())
	assert.Equal(t, []any{goblin, health}, d.PendingInstances(lifecycle.Start),
		"only wirings with a start phase schedule their own Start")
	assert.Equal(t, lifecycle.NotScheduled, d.State(lifecycle.Start, armor))
	assert.Equal(t, "g1", goblin.Label())

	require.NoError(t, world.BeginObject(goblin))
	assert.True(t, world.IsStarted(armor), "unscheduled components begin with their owner")
	assert.True(t, world.IsStarted(components[1]))
	assert.True(t, world.IsStarted(health))
	assert.Equal(t, []any{goblin}, d.PendingInstances(lifecycle.Start))

	_, err = c.Spawn("Broken", "", "b")
	assert.ErrorIs(t, err, ErrUnsupportedPhase)

	_, err = c.Spawn("Health", "", "h")
	assert.ErrorIs(t, err, entity.ErrNotEntity)
}

const manifest = `
classes:
  - class: Sword
    beans:
      - name: iron
        singleton: true
        fields:
          - field: Damage
            value: 4
          - field: Name
            value: iron
  - class: Goblin
    beans:
      - name: armed
        fields:
          - field: Weapon
            ref_type: Sword
            ref_name: iron
        components:
          - ref_type: Health
            priority: 1
            phase: start
`

func TestManifest(t *testing.T) {
	table := newTable(t)
	m, err := ParseManifest([]byte(manifest))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Count())
	require.NoError(t, m.Apply(table))

	sword, ok := table.Lookup("Sword")
	require.True(t, ok)
	iron, ok := sword.Bean("iron")
	require.True(t, ok)
	assert.Same(t, sword, iron.Class)
	assert.True(t, iron.Singleton)

	c := NewContainer(table, nil, nil)
	v, err := c.Get("Goblin", "armed")
	require.NoError(t, err)
	assert.Equal(t, 4, v.(*Goblin).Weapon.Damage)
	assert.Equal(t, "iron", v.(*Goblin).Weapon.Name)

	err = m.Apply(table)
	assert.ErrorIs(t, err, symbols.ErrDuplicateBean)
}

func TestManifest_Errors(t *testing.T) {
	_, err := ParseManifest([]byte("classes: [unterminated"))
	assert.Error(t, err)

	m, err := ParseManifest([]byte("classes:\n  - class: Dragon\n    beans:\n      - name: x\n"))
	require.NoError(t, err)
	assert.ErrorIs(t, m.Apply(newTable(t)), ErrUnknownClass)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Classes, 2)
	assert.Equal(t, "Goblin", m.Classes[1].Class)
	require.Len(t, m.Classes[1].Beans[0].Components, 1)
	assert.Equal(t, "start", m.Classes[1].Beans[0].Components[0].Phase)
}

func TestManifest_ApplyTo(t *testing.T) {
	table := newTable(t)
	m, err := ParseManifest([]byte(manifest))
	require.NoError(t, err)

	sword, _ := table.Lookup("Sword")
	goblin, _ := table.Lookup("Goblin")
	require.NoError(t, m.ApplyTo(sword))

	_, ok := sword.Bean("iron")
	assert.True(t, ok)
	_, ok = goblin.Bean("armed")
	assert.False(t, ok, "only the matching class receives beans")
}
