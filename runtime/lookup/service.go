// Package lookup finds live instances by class across every category.
//
// Each category registers a Provider under its base type. FindAll resolves
// the requested type to the most specific provider, so asking for a derived
// class only queries the category that can hold it.
package lookup

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/runtime/resolve"
	"github.com/conduit-lang/nucleus/runtime/symbols"
)

// Provider returns every live instance of t, or of a class derived from t,
// known to one category.
type Provider func(t reflect.Type) []any

// Service aggregates the per-category providers.
// It is not safe for concurrent use.
type Service struct {
	providers resolve.Resolver[Provider]
	entities  []reflect.Type
	logger    *zap.Logger
}

// NewService creates an empty lookup service
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// RegisterProvider sets the provider for t. A previous provider for the same
// type is replaced with a warning.
func (s *Service) RegisterProvider(t reflect.Type, p Provider) {
	if t == nil || p == nil {
		s.logger.Error("invalid lookup provider registration")
		return
	}
	if s.providers.Set(t, p) {
		s.logger.Warn("replaced lookup provider", zap.Stringer("type", t))
	}
}

// RegisterEntityCategory adds t to the categories FindAllEntities asks.
// The category needs a provider of its own.
func (s *Service) RegisterEntityCategory(t reflect.Type) {
	if t == nil {
		s.logger.Error("nil entity category")
		return
	}
	for _, existing := range s.entities {
		if existing == t {
			return
		}
	}
	s.entities = append(s.entities, t)
}

// EntityCategories returns the registered entity categories in registration order
func (s *Service) EntityCategories() []reflect.Type {
	return append([]reflect.Type(nil), s.entities...)
}

// FindAll returns every live instance of t from the most specific provider
// registered for t or one of its bases. An interface type with no provider of
// its own is asked of every provider, and the union is returned without
// duplicates. Returns nil when no provider matches.
func (s *Service) FindAll(t reflect.Type) []any {
	if t == nil {
		s.logger.Error("find all called with nil type")
		return nil
	}
	key, provider, ok := s.providers.Resolve(t, resolve.Inclusive)
	if ok {
		s.logger.Debug("lookup", zap.Stringer("type", t), zap.Stringer("provider", key))
		return provider(t)
	}
	if t.Kind() == reflect.Interface {
		return s.findImplementations(t)
	}
	s.logger.Debug("no lookup provider", zap.Stringer("type", t))
	return nil
}

func (s *Service) findImplementations(t reflect.Type) []any {
	s.logger.Debug("lookup across providers", zap.Stringer("interface", t))
	var result []any
	seen := make(map[any]struct{})
	s.providers.Each(func(_ reflect.Type, provider Provider) {
		result = appendUnique(result, seen, Filter(provider(t), t))
	})
	return result
}

// FindAllEntities asks every entity category for all of its instances and
// returns their union in category order, without duplicates.
func (s *Service) FindAllEntities() []any {
	var result []any
	seen := make(map[any]struct{})
	for _, category := range s.entities {
		result = appendUnique(result, seen, s.FindAll(category))
	}
	return result
}

func appendUnique(result []any, seen map[any]struct{}, instances []any) []any {
	for _, instance := range instances {
		if instance == nil {
			continue
		}
		if !reflect.TypeOf(instance).Comparable() {
			result = append(result, instance)
			continue
		}
		if _, dup := seen[instance]; dup {
			continue
		}
		seen[instance] = struct{}{}
		result = append(result, instance)
	}
	return result
}

// Find returns every live instance assignable to T
func Find[T any](s *Service) []T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	found := s.FindAll(t)
	result := make([]T, 0, len(found))
	for _, instance := range found {
		if v, ok := instance.(T); ok {
			result = append(result, v)
		}
	}
	return result
}

// Filter keeps the instances whose class is assignable to t
func Filter(instances []any, t reflect.Type) []any {
	var result []any
	for _, instance := range instances {
		if instance != nil && symbols.AssignableTo(symbols.TypeOf(instance), t) {
			result = append(result, instance)
		}
	}
	return result
}
