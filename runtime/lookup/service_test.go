package lookup

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entity struct{ name string }
type scene struct{ entity }
type object struct{ entity }
type player struct{ object }
type view struct{ entity }

type named interface{ Name() string }

type silent interface{ Silent() }

func (e *entity) Name() string { return e.name }

func typeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func newWorld() (*Service, []any, []any, []any) {
	s := NewService(nil)
	scenes := []any{&scene{entity{"lobby"}}}
	hero := &player{object{entity{"hero"}}}
	objects := []any{&object{entity{"rock"}}, hero}
	views := []any{&view{entity{"hud"}}, hero}

	s.RegisterProvider(typeOf[scene](), func(reflect.Type) []any { return scenes })
	s.RegisterProvider(typeOf[object](), func(t reflect.Type) []any { return Filter(objects, t) })
	s.RegisterProvider(typeOf[view](), func(reflect.Type) []any { return append(views, nil) })
	s.RegisterEntityCategory(typeOf[scene]())
	s.RegisterEntityCategory(typeOf[object]())
	s.RegisterEntityCategory(typeOf[view]())
	return s, scenes, objects, views
}

func TestService_FindAll(t *testing.T) {
	s, _, objects, _ := newWorld()

	assert.Equal(t, objects, s.FindAll(typeOf[object]()))
	assert.Equal(t, []any{objects[1]}, s.FindAll(typeOf[player]()), "derived types resolve to the category provider")
	assert.Nil(t, s.FindAll(typeOf[entity]()), "no provider for the shared base")
	assert.Nil(t, s.FindAll(nil))
}

func TestService_MostSpecificProvider(t *testing.T) {
	s, _, _, _ := newWorld()
	special := []any{&player{}}
	s.RegisterProvider(typeOf[player](), func(reflect.Type) []any { return special })

	assert.Equal(t, special, s.FindAll(typeOf[player]()))
	assert.Len(t, s.FindAll(typeOf[object]()), 2)
}

func TestService_ReplaceProvider(t *testing.T) {
	s := NewService(nil)
	s.RegisterProvider(typeOf[scene](), func(reflect.Type) []any { return []any{1} })
	s.RegisterProvider(typeOf[scene](), func(reflect.Type) []any { return []any{2} })
	assert.Equal(t, []any{2}, s.FindAll(typeOf[scene]()))
}

func TestService_FindAllEntities(t *testing.T) {
	s, scenes, objects, views := newWorld()

	all := s.FindAllEntities()
	assert.Equal(t, []any{scenes[0], objects[0], objects[1], views[0]}, all, "union in category order, no duplicates, no nils")

	s.RegisterEntityCategory(typeOf[scene]())
	assert.Len(t, s.EntityCategories(), 3)
}

func TestFind(t *testing.T) {
	s, _, objects, _ := newWorld()

	players := Find[*player](s)
	require.Len(t, players, 1)
	assert.Same(t, objects[1], players[0])

	s.RegisterProvider(typeOf[named](), func(reflect.Type) []any { return s.FindAllEntities() })
	assert.Len(t, Find[named](s), 4)
}

func TestService_FindAllInterface(t *testing.T) {
	s, scenes, objects, views := newWorld()

	assert.Equal(t, []any{scenes[0], objects[0], objects[1], views[0]}, s.FindAll(typeOf[named]()),
		"every provider is asked, duplicates and nils dropped")
	assert.Empty(t, s.FindAll(typeOf[silent]()))
	assert.Len(t, Find[named](s), 4)

	only := []any{&object{entity{"idol"}}}
	s.RegisterProvider(typeOf[named](), func(reflect.Type) []any { return only })
	assert.Equal(t, only, s.FindAll(typeOf[named]()), "a provider for the interface itself wins")
}
