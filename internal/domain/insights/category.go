package insights

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CategoryType string

const (
	CategoryPlace    CategoryType = "place"
	CategoryProduct  CategoryType = "product"
	CategoryMovie    CategoryType = "movie"
	CategoryMeal     CategoryType = "meal"
	CategoryPerson   CategoryType = "person"
	CategoryActivity CategoryType = "activity"
	CategoryEmotion  CategoryType = "emotion"
	CategoryOther    CategoryType = "other"
)

var categoryTypes = map[CategoryType]struct{}{
	CategoryPlace: {}, CategoryProduct: {}, CategoryMovie: {}, CategoryMeal: {},
	CategoryPerson: {}, CategoryActivity: {}, CategoryEmotion: {}, CategoryOther: {},
}

// ParseCategoryType normalizes a model-supplied type. Anything outside the
// taxonomy maps to "other".
func ParseCategoryType(raw string) CategoryType {
	t := CategoryType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := categoryTypes[t]; ok {
		return t
	}
	return CategoryOther
}

// Category is a globally shared subject bucket. Name is the case-sensitive
// uniqueness key; rows are never modified after creation.
type Category struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string       `gorm:"column:name;not null;uniqueIndex:idx_category_name" json:"name"`
	Type        CategoryType `gorm:"column:category_type;not null;index" json:"category_type"`
	Description string       `gorm:"column:description;not null;default:''" json:"description"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

func (Category) TableName() string { return "category" }

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
