// Package sandbox is a small arena built on the nucleus runtime. Its classes
// exercise every category, binding kind and bean feature, and the CLI loads
// them when no other classes are available.
package sandbox

import (
	_ "embed"
	"fmt"
	"reflect"
	"time"

	"github.com/conduit-lang/nucleus/runtime/beans"
	"github.com/conduit-lang/nucleus/runtime/entity"
	"github.com/conduit-lang/nucleus/runtime/kernel"
	"github.com/conduit-lang/nucleus/runtime/lifecycle"
	"github.com/conduit-lang/nucleus/runtime/symbols"
	"github.com/conduit-lang/nucleus/runtime/tags"
)

// Event ids and message opcodes
const (
	EventHit   int32 = 1
	EventRound int32 = 2

	OpTaunt int32 = 10
)

// DefaultManifest declares the sandbox beans that are not part of any class
//
//go:embed beans.yaml
var DefaultManifest []byte

// Hit is the EventHit payload
type Hit struct {
	Damage int
}

var hitType = reflect.TypeOf(&Hit{})

// Sword is a plain bean class outside every category
type Sword struct {
	Name   string
	Damage int
}

func (*Sword) Annotations() symbols.Annotations {
	return symbols.Annotations{Beans: []symbols.Bean{
		{Name: "steel", Singleton: true, Fields: []symbols.BeanField{
			{Field: "Name", Value: "steel"},
			{Field: "Damage", Value: 12},
		}},
	}}
}

type ArenaScene struct {
	entity.Scene
	Rounds int
}

func (s *ArenaScene) OnRound(id int32) { s.Rounds++ }

func (*ArenaScene) Annotations() symbols.Annotations {
	return symbols.Annotations{
		Class: symbols.Tags{tags.AutoDisplay{Views: []string{"Hud", "Scoreboard"}}},
		Methods: map[string]symbols.Tags{
			"OnRound": {tags.Subscribe{Event: EventRound}},
		},
	}
}

type HudView struct{ entity.View }

func (*HudView) Annotations() symbols.Annotations {
	return symbols.Annotations{Class: symbols.Tags{
		tags.Symbiosis{Group: "hud"},
		tags.ViewOptions{Cached: true},
	}}
}

type ScoreboardView struct {
	entity.View
	Hits int
}

func (v *ScoreboardView) OnHit(id int32, hit *Hit) { v.Hits++ }

func (*ScoreboardView) Annotations() symbols.Annotations {
	return symbols.Annotations{
		Class: symbols.Tags{tags.Symbiosis{Group: "hud"}, tags.Symbiosis{Group: "stats"}},
		Methods: map[string]symbols.Tags{
			"OnHit": {tags.Subscribe{Event: EventHit, Payload: hitType}},
		},
	}
}

// Creature is the shared base of every monster
type Creature struct {
	entity.Object
	HP int
}

func (*Creature) Annotations() symbols.Annotations {
	return symbols.Annotations{Beans: []symbols.Bean{
		{Name: "veteran", Inherit: true, Fields: []symbols.BeanField{{Field: "HP", Value: 80}}},
	}}
}

type OrcObject struct {
	Creature
	Weapon *Sword `inject:"steel"`
	Taunts int
	Rounds int
}

func (o *OrcObject) OnHit(id int32, hit *Hit) {
	o.HP -= hit.Damage
}

func (o *OrcObject) OnTaunt(op int32) error {
	if o.HP <= 0 {
		return fmt.Errorf("orc cannot taunt at %d hp", o.HP)
	}
	o.Taunts++
	return nil
}

// OnRound is bound to Destroy, so it still runs while the orc is torn down
func (o *OrcObject) OnRound(id int32) { o.Rounds++ }

func (*OrcObject) Annotations() symbols.Annotations {
	return symbols.Annotations{
		Class: symbols.Tags{tags.Object{Name: "Orc", Category: 1}},
		Methods: map[string]symbols.Tags{
			"OnHit":   {tags.Subscribe{Event: EventHit, Payload: hitType}},
			"OnTaunt": {tags.Handle{Opcode: OpTaunt}},
			"OnRound": {tags.Subscribe{Event: EventRound, Phase: lifecycle.Destroy}},
		},
		Beans: []symbols.Bean{
			{Name: "default", Fields: []symbols.BeanField{{Field: "HP", Value: 40}}},
		},
	}
}

type HealthComponent struct {
	entity.Component
	Max     int
	Current int
	Regen   time.Duration
}

func (h *HealthComponent) OnHit(id int32, hit *Hit) {
	h.Current -= hit.Damage
	if h.Current < 0 {
		h.Current = 0
	}
}

func (*HealthComponent) Annotations() symbols.Annotations {
	return symbols.Annotations{
		Methods: map[string]symbols.Tags{
			"OnHit": {tags.Subscribe{Event: EventHit, Payload: hitType}},
		},
		Beans: []symbols.Bean{
			{Name: "default", Fields: []symbols.BeanField{
				{Field: "Max", Value: 100},
				{Field: "Current", Value: 100},
				{Field: "Regen", Value: "2s"},
			}},
		},
	}
}

type ArmorComponent struct {
	entity.Component
	Rating int
}

// Classes returns the sandbox classes in load order
func Classes() []reflect.Type {
	return []reflect.Type{
		reflect.TypeOf(Sword{}),
		reflect.TypeOf(ArenaScene{}),
		reflect.TypeOf(HudView{}),
		reflect.TypeOf(ScoreboardView{}),
		reflect.TypeOf(Creature{}),
		reflect.TypeOf(OrcObject{}),
		reflect.TypeOf(HealthComponent{}),
		reflect.TypeOf(ArmorComponent{}),
	}
}

// BootClasses creates a kernel with the sandbox classes loaded and no
// manifest applied
func BootClasses(opts kernel.Options) (*kernel.Kernel, error) {
	k, err := kernel.New(opts)
	if err != nil {
		return nil, err
	}
	if err := k.LoadClasses(Classes()...); err != nil {
		return nil, err
	}
	return k, nil
}

// Boot is BootClasses plus bean manifests. Without paths the embedded
// manifest is applied; otherwise each file is loaded and reread on every
// full reload.
func Boot(opts kernel.Options, manifests ...string) (*kernel.Kernel, error) {
	k, err := BootClasses(opts)
	if err != nil {
		return nil, err
	}

	if len(manifests) == 0 {
		m, err := beans.ParseManifest(DefaultManifest)
		if err != nil {
			return nil, err
		}
		if err := k.ApplyManifest(m); err != nil {
			return nil, err
		}
		return k, nil
	}
	for _, path := range manifests {
		if err := k.LoadManifest(path); err != nil {
			return nil, err
		}
	}
	return k, nil
}
