// Package catalog is the registry of action types: defaults, field metadata, result shapes and params schemas.
package catalog

import (
	"fmt"
	"slices"

	"github.com/dukex/socialflow/pkg/models"
)

// Classification is the coarse shape of the list an action produces.
type Classification string

const (
	ClassUsers   Classification = "users"
	ClassPosts   Classification = "posts"
	ClassUnknown Classification = "unknown"
)

// Shape is the shape a single value is expected to have.
type Shape string

const (
	ShapeUser    Shape = "user"
	ShapePost    Shape = "post"
	ShapeUnknown Shape = "unknown"
)

// ItemShape is the shape of one element of a list with this classification.
func (c Classification) ItemShape() Shape {
	switch c {
	case ClassUsers:
		return ShapeUser
	case ClassPosts:
		return ShapePost
	default:
		return ShapeUnknown
	}
}

// FieldKind is the value kind of a params field.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindNumber  FieldKind = "number"
	KindActions FieldKind = "actions"
)

// FieldSpec describes one params field.
type FieldSpec struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"kind"`
	Required    bool      `json:"required"`
	Shape       Shape     `json:"shape,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Description string    `json:"description,omitempty"`
}

// ResultField is one leaf of the object an action stores under "result".
type ResultField struct {
	Path  string         `json:"path"`
	Shape Classification `json:"shape"`
	List  bool           `json:"list"`
}

// Descriptor is the metadata of an action type.
type Descriptor struct {
	Type                models.ActionType `json:"type"`
	Label               string            `json:"label"`
	Description         string            `json:"description"`
	ExpectedFields      []FieldSpec       `json:"expected_fields"`
	ProducesResultShape Classification    `json:"produces_result_shape"`
	Results             []ResultField     `json:"results"`
}

// Field returns the definition of the named field.
func (d Descriptor) Field(name string) (FieldSpec, bool) {
	for _, field := range d.ExpectedFields {
		if field.Name == name {
			return field, true
		}
	}

	return FieldSpec{}, false
}

// Result returns the result leaf with the given top-level path.
func (d Descriptor) Result(path string) (ResultField, bool) {
	for _, result := range d.Results {
		if result.Path == path {
			return result, true
		}
	}

	return ResultField{}, false
}

// Entry registers an action type.
type Entry struct {
	Descriptor Descriptor
	Defaults   func() models.ActionParams
}

// Catalog maps action types to their entries.
type Catalog struct {
	entries map[models.ActionType]Entry
	order   []models.ActionType
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		entries: make(map[models.ActionType]Entry),
		order:   make([]models.ActionType, 0),
	}
}

// Default is the catalog of every built-in action type.
var Default = NewDefault()

// NewDefault returns a catalog populated with the built-in action types.
func NewDefault() *Catalog {
	c := New()
	registerBuiltins(c)

	return c
}

// Register adds or replaces an entry.
func (c *Catalog) Register(entry Entry) {
	actionType := entry.Descriptor.Type
	if _, exists := c.entries[actionType]; !exists {
		c.order = append(c.order, actionType)
	}

	c.entries[actionType] = entry
}

// Types returns the registered action types in registration order.
func (c *Catalog) Types() []models.ActionType {
	return slices.Clone(c.order)
}

func (c *Catalog) lookup(actionType models.ActionType) (Entry, error) {
	entry, ok := c.entries[actionType]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", models.ErrUnknownActionType, actionType)
	}

	return entry, nil
}

// DefaultParams returns a freshly built default params record. Callers may mutate it freely.
func (c *Catalog) DefaultParams(actionType models.ActionType) (models.ActionParams, error) {
	entry, err := c.lookup(actionType)
	if err != nil {
		return nil, err
	}

	return entry.Defaults(), nil
}

// NewAction returns an action of the given type carrying default params.
func (c *Catalog) NewAction(actionType models.ActionType) (*models.Action, error) {
	params, err := c.DefaultParams(actionType)
	if err != nil {
		return nil, err
	}

	return &models.Action{Type: actionType, Params: params}, nil
}

// Describe returns the metadata of an action type.
func (c *Catalog) Describe(actionType models.ActionType) (Descriptor, error) {
	entry, err := c.lookup(actionType)
	if err != nil {
		return Descriptor{}, err
	}

	descriptor := entry.Descriptor
	descriptor.ExpectedFields = slices.Clone(descriptor.ExpectedFields)
	descriptor.Results = slices.Clone(descriptor.Results)

	return descriptor, nil
}

// Classify returns the shape of what the action produces; unknown types classify as unknown.
func (c *Catalog) Classify(actionType models.ActionType) Classification {
	entry, ok := c.entries[actionType]
	if !ok {
		return ClassUnknown
	}

	return entry.Descriptor.ProducesResultShape
}

// ForEachChildren lists the action types that make sense inside a forEach over a list of the given shape.
func (c *Catalog) ForEachChildren(list Classification) []models.ActionType {
	children := make([]models.ActionType, 0)

	for _, actionType := range c.order {
		if actionType == models.ActionIf || actionType == models.ActionForEach {
			continue
		}

		if c.acceptsItem(actionType, list.ItemShape()) {
			children = append(children, actionType)
		}
	}

	return children
}

// acceptsItem reports whether an action has a field bound to the item shape,
// or has no shaped field at all. Unknown items fit every action.
func (c *Catalog) acceptsItem(actionType models.ActionType, item Shape) bool {
	if item == ShapeUnknown {
		return true
	}

	shaped := false

	for _, field := range c.entries[actionType].Descriptor.ExpectedFields {
		if field.Shape == "" || field.Shape == ShapeUnknown {
			continue
		}

		shaped = true

		if field.Shape == item {
			return true
		}
	}

	return !shaped
}
