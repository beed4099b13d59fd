package quota

import (
	"fmt"

	"pharmaledger/internal/core/apperror"
)

// ResourceClass is a kind of counted tenant resource.
type ResourceClass string

const (
	ClassStaff       ResourceClass = "staff"
	ClassDoctor      ResourceClass = "doctor"
	ClassPatient     ResourceClass = "patient"
	ClassCatalogItem ResourceClass = "catalog_item"
)

// Classes lists every counted class in display order.
func Classes() []ResourceClass {
	return []ResourceClass{ClassPatient, ClassDoctor, ClassStaff, ClassCatalogItem}
}

// ParseClass validates a class name.
func ParseClass(s string) (ResourceClass, error) {
	for _, c := range Classes() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", apperror.NewFieldValidation("resource", fmt.Sprintf("unknown resource class %q", s))
}

// Label is the name used in user-facing messages.
func (c ResourceClass) Label() string {
	switch c {
	case ClassStaff:
		return "Staff"
	case ClassDoctor:
		return "Doctor"
	case ClassPatient:
		return "Patient"
	case ClassCatalogItem:
		return "Catalog item"
	default:
		return string(c)
	}
}
