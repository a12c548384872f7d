package enums

import (
	"fmt"
	"slices"
)

// ProductCategory groups products for pricing and loyalty rules.
type ProductCategory string

const (
	ProductCategoryRefill    ProductCategory = "refill"
	ProductCategoryContainer ProductCategory = "container"
	ProductCategoryDispenser ProductCategory = "dispenser"
	ProductCategoryAccessory ProductCategory = "accessory"
)

var validProductCategories = []ProductCategory{
	ProductCategoryRefill,
	ProductCategoryContainer,
	ProductCategoryDispenser,
	ProductCategoryAccessory,
}

// String implements fmt.Stringer.
func (p ProductCategory) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductCategory.
func (p ProductCategory) IsValid() bool {
	return slices.Contains(validProductCategories, p)
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	if v := ProductCategory(value); v.IsValid() {
		return v, nil
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
