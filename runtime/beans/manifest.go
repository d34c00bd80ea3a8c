// Package beans wires instances from bean descriptors.
//
// Beans come from two places: the Annotations of a class and YAML manifests
// applied to an extracted symbol table. A Container builds instances from
// them, fills literal and referenced fields, and attaches component beans to
// spawned entities.
package beans

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/nucleus/runtime/symbols"
)

// ErrUnknownClass is returned when a manifest names a class the table lacks
var ErrUnknownClass = errors.New("unknown class")

// Manifest is the YAML bean file format
type Manifest struct {
	Classes []ClassBeans `yaml:"classes"`
}

// ClassBeans lists the beans declared for one class. Class is a full name or
// an unambiguous short name.
type ClassBeans struct {
	Class string         `yaml:"class"`
	Beans []symbols.Bean `yaml:"beans"`
}

// ParseManifest decodes a manifest document
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse bean manifest: %w", err)
	}
	return &m, nil
}

// LoadManifest reads and decodes the manifest at path
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bean manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Apply attaches the manifest's beans to the classes in table. Every entry is
// attempted; the errors of failed entries are joined.
func (m *Manifest) Apply(table *symbols.Table) error {
	var errs []error
	for _, entry := range m.Classes {
		class, ok := table.Lookup(entry.Class)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownClass, entry.Class))
			continue
		}
		for _, bean := range entry.Beans {
			if err := class.AddBean(bean); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of beans the manifest declares
func (m *Manifest) Count() int {
	n := 0
	for _, entry := range m.Classes {
		n += len(entry.Beans)
	}
	return n
}

// ApplyTo attaches the beans the manifest declares for class, matched by full
// or short name. Used after re-extraction, which drops manifest beans.
func (m *Manifest) ApplyTo(class *symbols.SymClass) error {
	var errs []error
	for _, entry := range m.Classes {
		if entry.Class != class.FullName && entry.Class != class.Name {
			continue
		}
		for _, bean := range entry.Beans {
			if err := class.AddBean(bean); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
