package enums

import "fmt"

// DishStatus captures menu availability of a dish.
type DishStatus string

const (
	DishStatusAvailable   DishStatus = "available"
	DishStatusUnavailable DishStatus = "unavailable"
	DishStatusHidden      DishStatus = "hidden"
)

var validDishStatuses = []DishStatus{
	DishStatusAvailable,
	DishStatusUnavailable,
	DishStatusHidden,
}

// IsValid reports whether the value is a known DishStatus.
func (d DishStatus) IsValid() bool {
	for _, candidate := range validDishStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDishStatus converts raw input into a DishStatus.
func ParseDishStatus(value string) (DishStatus, error) {
	for _, candidate := range validDishStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dish status %q", value)
}
