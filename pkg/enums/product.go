package enums

import "fmt"

type AnimalType string

const (
	AnimalCat  AnimalType = "cat"
	AnimalDog  AnimalType = "dog"
	AnimalFish AnimalType = "fish"
)

var validAnimalTypes = []AnimalType{AnimalCat, AnimalDog, AnimalFish}

func (a AnimalType) String() string {
	return string(a)
}

func (a AnimalType) IsValid() bool {
	for _, candidate := range validAnimalTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

func ParseAnimalType(value string) (AnimalType, error) {
	for _, candidate := range validAnimalTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid animal type %q", value)
}

type ProductCategory string

const (
	CategoryDry          ProductCategory = "dry"
	CategoryWet          ProductCategory = "wet"
	CategoryTreats       ProductCategory = "treats"
	CategorySubscription ProductCategory = "subscription"
)

var validProductCategories = []ProductCategory{CategoryDry, CategoryWet, CategoryTreats, CategorySubscription}

func (c ProductCategory) String() string {
	return string(c)
}

func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
