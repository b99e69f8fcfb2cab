package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Size string

const (
	SizeSmall  Size = "s"
	SizeMedium Size = "m"
	SizeLarge  Size = "l"
	SizeJumbo  Size = "j"
)

func (s Size) Valid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge, SizeJumbo:
		return true
	}
	return false
}

// SizeVariant is one priced size of a pizza. Rating counts confirmed units sold.
type SizeVariant struct {
	ID        int64           `json:"id"`
	PizzaID   int64           `json:"-"`
	PizzaName string          `json:"-"`
	Size      Size            `json:"size"`
	Grammage  int             `json:"grammage"`
	Price     decimal.Decimal `json:"price"`
	Rating    int             `json:"rating"`
}

type Pizza struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Ingredients string        `json:"ingredients"`
	PhotoURL    string        `json:"photo_url"`
	CreatedOn   time.Time     `json:"-"`
	Sizes       []SizeVariant `json:"sizes"`
}
