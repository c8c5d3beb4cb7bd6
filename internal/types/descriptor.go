package types

// PropertyDescriptor is the specification property-descriptor record. Every
// field is optional; nil means absent. A descriptor is a data descriptor when
// Value or Writable is present, an accessor descriptor when Get or Set is
// present, and generic otherwise. Fully populated descriptors round-trip
// through descriptor objects (internal/core owns that conversion, which
// needs object access).
type PropertyDescriptor struct {
	Value        *Value
	Get          *Value
	Set          *Value
	Writable     *bool
	Enumerable   *bool
	Configurable *bool
}

// IsDataDescriptor reports whether d is a data descriptor.
func (d PropertyDescriptor) IsDataDescriptor() bool {
	return d.Value != nil || d.Writable != nil
}

// IsAccessorDescriptor reports whether d is an accessor descriptor.
func (d PropertyDescriptor) IsAccessorDescriptor() bool {
	return d.Get != nil || d.Set != nil
}

// IsGenericDescriptor reports whether d is neither data nor accessor.
func (d PropertyDescriptor) IsGenericDescriptor() bool {
	return !d.IsDataDescriptor() && !d.IsAccessorDescriptor()
}

// DataDescriptor builds a fully populated data descriptor.
func DataDescriptor(v Value, writable, enumerable, configurable bool) PropertyDescriptor {
	return PropertyDescriptor{
		Value:        &v,
		Writable:     &writable,
		Enumerable:   &enumerable,
		Configurable: &configurable,
	}
}

// AccessorDescriptor builds a fully populated accessor descriptor. Absent
// get or set is represented by the undefined value, matching a descriptor
// object with an explicit undefined field.
func AccessorDescriptor(get, set Value, enumerable, configurable bool) PropertyDescriptor {
	return PropertyDescriptor{
		Get:          &get,
		Set:          &set,
		Enumerable:   &enumerable,
		Configurable: &configurable,
	}
}

// CompletePropertyDescriptor fills absent fields with their defaults:
// undefined for value/get/set, false for the flags.
func (d PropertyDescriptor) CompletePropertyDescriptor() PropertyDescriptor {
	out := d
	if out.IsGenericDescriptor() || out.IsDataDescriptor() {
		if out.Value == nil {
			out.Value = ValuePtr(Undefined())
		}
		if out.Writable == nil {
			out.Writable = BoolPtr(false)
		}
	} else {
		if out.Get == nil {
			out.Get = ValuePtr(Undefined())
		}
		if out.Set == nil {
			out.Set = ValuePtr(Undefined())
		}
	}
	if out.Enumerable == nil {
		out.Enumerable = BoolPtr(false)
	}
	if out.Configurable == nil {
		out.Configurable = BoolPtr(false)
	}
	return out
}

// BoolPtr and ValuePtr are small helpers for building partial descriptors.
func BoolPtr(b bool) *bool    { return &b }
func ValuePtr(v Value) *Value { return &v }
