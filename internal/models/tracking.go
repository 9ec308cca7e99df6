package models

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/schema"
)

// FieldChange records the transition of a single tracked field between the
// pre-image and the current in-memory state.
type FieldChange struct {
	Previous any
	Current  any
}

// PreImage is an immutable snapshot of an entity's tracked fields, taken when
// the entity was loaded or last saved. Relational fields are tracked by their
// foreign-key id, never by the referenced object, so change detection cannot
// trigger lazy loads.
type PreImage struct {
	values    map[string]any
	untracked map[string]struct{}
}

// FieldDoesNotExistError reports tracking configured on a field that does not
// exist on the entity. This is a programmer bug and surfaces as a panic.
type FieldDoesNotExistError struct {
	Field string
}

func (e FieldDoesNotExistError) Error() string {
	return fmt.Sprintf("field %q does not exist on the tracked entity", e.Field)
}

// FieldCannotBeTrackedError reports tracking configured on a field whose type
// is not supported by the snapshot. This is a programmer bug and surfaces as
// a panic.
type FieldCannotBeTrackedError struct {
	Field string
}

func (e FieldCannotBeTrackedError) Error() string {
	return fmt.Sprintf("field %q cannot be tracked", e.Field)
}

var namer = schema.NamingStrategy{}

// Snapshot takes a pre-image of the entity's tracked fields. Pass a struct or
// a pointer to one.
func Snapshot(entity any) PreImage {
	pre := PreImage{
		values:    map[string]any{},
		untracked: map[string]struct{}{},
	}

	value := reflect.ValueOf(entity)
	for value.Kind() == reflect.Pointer {
		value = value.Elem()
	}

	snapshotInto(&pre, value)
	return pre
}

func snapshotInto(pre *PreImage, value reflect.Value) {
	t := value.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		// Embedded structs contribute their own columns.
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			snapshotInto(pre, value.Field(i))
			continue
		}

		name := namer.ColumnName("", field.Name)
		v, ok := snapshotValue(value.Field(i))
		if !ok {
			pre.untracked[name] = struct{}{}
			continue
		}

		pre.values[name] = v
	}
}

// snapshotValue copies a single field value. Associations (slices and
// arbitrary structs) are not trackable; their foreign-key id columns are.
func snapshotValue(value reflect.Value) (any, bool) {
	if value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil, true
		}
		return snapshotValue(value.Elem())
	}

	switch v := value.Interface().(type) {
	case decimal.Decimal:
		return v, true
	case uuid.UUID:
		return v, true
	case time.Time:
		return v, true
	}

	switch value.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return value.Interface(), true
	default:
		return nil, false
	}
}

// PreviousValue returns the value of a tracked field at snapshot time.
// It panics for unknown or untrackable fields.
func (p PreImage) PreviousValue(field string) any {
	if _, ok := p.untracked[field]; ok {
		panic(FieldCannotBeTrackedError{Field: field})
	}

	v, ok := p.values[field]
	if !ok {
		panic(FieldDoesNotExistError{Field: field})
	}

	return v
}

// Diff compares the pre-image against the entity's current state and returns
// the changed fields.
func Diff(pre PreImage, entity any) map[string]FieldChange {
	post := Snapshot(entity)

	changes := map[string]FieldChange{}
	for name, previous := range pre.values {
		current, ok := post.values[name]
		if !ok {
			continue
		}

		if !equalValue(previous, current) {
			changes[name] = FieldChange{Previous: previous, Current: current}
		}
	}

	return changes
}

// FieldHasChanged reports whether a single tracked field changed since the
// pre-image was taken.
func FieldHasChanged(pre PreImage, entity any, field string) bool {
	current := Snapshot(entity).PreviousValue(field)
	return !equalValue(pre.PreviousValue(field), current)
}

// FieldsHaveChanged reports whether any of the given fields changed since the
// pre-image was taken.
func FieldsHaveChanged(pre PreImage, entity any, fields ...string) bool {
	for _, field := range fields {
		if FieldHasChanged(pre, entity, field) {
			return true
		}
	}

	return false
}

// equalValue compares two snapshot values. Decimals compare by numeric
// equality, everything else by deep equality.
func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	da, aOK := a.(decimal.Decimal)
	db, bOK := b.(decimal.Decimal)
	if aOK && bOK {
		return da.Equal(db)
	}

	ta, aOK := a.(time.Time)
	tb, bOK := b.(time.Time)
	if aOK && bOK {
		return ta.Equal(tb)
	}

	return reflect.DeepEqual(a, b)
}
