package loader

import (
	"reflect"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/runtime/symbols"
	"github.com/conduit-lang/nucleus/runtime/tags"
)

// Options tune every category loader
type Options struct {
	// StrictBindings rejects a class with a malformed binding instead of
	// skipping the binding
	StrictBindings bool
}

// CategoryLoader keeps the code info records of one category, indexed by
// display name and by class type.
type CategoryLoader[T Info] struct {
	category Category
	build    func(base CodeInfo) T
	byName   map[string]T
	byType   map[reflect.Type]T
	logger   *zap.Logger
	opts     Options
}

func newCategoryLoader[T Info](category Category, logger *zap.Logger, opts Options, build func(CodeInfo) T) *CategoryLoader[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryLoader[T]{
		category: category,
		build:    build,
		byName:   make(map[string]T),
		byType:   make(map[reflect.Type]T),
		logger:   logger.With(zap.Stringer("category", category)),
		opts:     opts,
	}
}

// NewSceneLoader creates the scene category loader
func NewSceneLoader(logger *zap.Logger, opts Options) *CategoryLoader[*SceneInfo] {
	return newCategoryLoader(CategoryScene, logger, opts, func(base CodeInfo) *SceneInfo {
		info := &SceneInfo{CodeInfo: base}
		for _, tag := range symbols.FindAll[tags.AutoDisplay](base.Class.Tags) {
			info.AutoDisplay = append(info.AutoDisplay, tag.Views...)
		}
		return info
	})
}

// NewViewLoader creates the view category loader
func NewViewLoader(logger *zap.Logger, opts Options) *CategoryLoader[*ViewInfo] {
	return newCategoryLoader(CategoryView, logger, opts, func(base CodeInfo) *ViewInfo {
		info := &ViewInfo{CodeInfo: base}
		for _, tag := range symbols.FindAll[tags.Symbiosis](base.Class.Tags) {
			info.Groups = append(info.Groups, tag.Group)
		}
		if flags, ok := symbols.Find[tags.ViewOptions](base.Class.Tags); ok {
			info.Cached = flags.Cached
			info.Masked = flags.Masked
		}
		return info
	})
}

// NewObjectLoader creates the domain object category loader
func NewObjectLoader(logger *zap.Logger, opts Options) *CategoryLoader[*ObjectInfo] {
	return newCategoryLoader(CategoryObject, logger, opts, func(base CodeInfo) *ObjectInfo {
		info := &ObjectInfo{CodeInfo: base}
		if tag, ok := symbols.Find[tags.Object](base.Class.Tags); ok {
			info.FunctionalCategory = tag.Category
		}
		return info
	})
}

// NewComponentLoader creates the component category loader
func NewComponentLoader(logger *zap.Logger, opts Options) *CategoryLoader[*ComponentInfo] {
	return newCategoryLoader(CategoryComponent, logger, opts, func(base CodeInfo) *ComponentInfo {
		return &ComponentInfo{CodeInfo: base}
	})
}

// Category returns the category the loader serves
func (l *CategoryLoader[T]) Category() Category {
	return l.category
}

// Load builds and registers the code info of class.
//
// Without reload, a class already loaded or a display name already taken is
// rejected. With reload the new record replaces the old one in a single step,
// including when the class changed its display name.
func (l *CategoryLoader[T]) Load(class *symbols.SymClass, reload bool) bool {
	if class == nil {
		l.logger.Error("load called with nil class")
		return false
	}

	name := l.DisplayName(class)
	if !reload {
		if _, loaded := l.byType[class.Type]; loaded {
			l.logger.Warn("class already loaded", zap.String("class", class.FullName))
			return false
		}
		if existing, taken := l.byName[name]; taken {
			l.logger.Warn("display name already registered",
				zap.String("name", name),
				zap.String("class", class.FullName),
				zap.String("existing", existing.Base().Class.FullName),
			)
			return false
		}
	}

	events, messages, err := scanBindings(class, l.logger, l.opts.StrictBindings)
	if err != nil {
		l.logger.Error("class rejected", zap.String("class", class.FullName), zap.Error(err))
		return false
	}
	info := l.build(CodeInfo{
		Name:     name,
		Category: l.category,
		Class:    class,
		Events:   events,
		Messages: messages,
	})

	if previous, ok := l.byType[class.Type]; ok {
		delete(l.byName, previous.Base().Name)
	}
	if displaced, ok := l.byName[name]; ok {
		delete(l.byType, displaced.Base().Class.Type)
		l.logger.Info("replacing code info", zap.String("name", name), zap.String("previous", displaced.Base().Class.FullName))
	}
	l.byName[name] = info
	l.byType[class.Type] = info

	l.logger.Debug("loaded class",
		zap.String("name", name),
		zap.String("class", class.FullName),
		zap.Int("events", len(events)),
		zap.Int("messages", len(messages)),
		zap.Bool("reload", reload),
	)
	return true
}

// Lookup returns the record for class, or nil
func (l *CategoryLoader[T]) Lookup(class *symbols.SymClass) Info {
	if class == nil {
		return nil
	}
	if info, ok := l.byType[class.Type]; ok {
		return info
	}
	return nil
}

// Cleanup drops every record
func (l *CategoryLoader[T]) Cleanup() {
	l.byName = make(map[string]T)
	l.byType = make(map[reflect.Type]T)
}

// Get returns the record registered under name
func (l *CategoryLoader[T]) Get(name string) (T, bool) {
	info, ok := l.byName[name]
	return info, ok
}

// All returns every record ordered by display name
func (l *CategoryLoader[T]) All() []T {
	result := make([]T, 0, len(l.byName))
	for _, info := range l.byName {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Base().Name < result[j].Base().Name })
	return result
}

// Len returns the number of records
func (l *CategoryLoader[T]) Len() int {
	return len(l.byName)
}

// DisplayName returns the explicit name from the category tag, or the class
// name with the category suffix stripped.
func (l *CategoryLoader[T]) DisplayName(class *symbols.SymClass) string {
	for _, tag := range class.Tags {
		if named, ok := tag.(tags.Named); ok && named.TagName() == l.category.String() && named.DeclaredName() != "" {
			return named.DeclaredName()
		}
	}
	return StripSuffix(class.Name, l.category.Suffix())
}

// StripSuffix removes suffix from name. When the suffix is the whole name the
// raw name is kept.
func StripSuffix(name, suffix string) string {
	trimmed := strings.TrimSuffix(name, suffix)
	if trimmed == "" {
		return name
	}
	return trimmed
}
