package orders

import (
	"github.com/angelmondragon/tableside/internal/catalog"
	"github.com/shopspring/decimal"
)

// DishSummary is a dish line joined with its catalog entry.
type DishSummary struct {
	DishID      int64           `json:"dish_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Quantity    int             `json:"quantity"`
}

// SetDishSummary is one resolved dish inside a set.
type SetDishSummary struct {
	DishID   int64           `json:"dish_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// SetSummary is a set line joined with its catalog entry and constituent dishes.
type SetSummary struct {
	SetID       int64            `json:"set_id"`
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	Description string           `json:"description"`
	Image       string           `json:"image"`
	Quantity    int              `json:"quantity"`
	Dishes      []SetDishSummary `json:"dishes"`
}

// Summary is derived from the aggregate on every read and never stored.
type Summary struct {
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Dishes     []DishSummary   `json:"dishes"`
	Sets       []SetSummary    `json:"sets"`
}

// Summarize joins agg against the catalog. Entries missing from the catalog
// resolve to zero values. agg may be nil.
func Summarize(agg *Aggregate, reader catalog.Reader) Summary {
	summary := Summary{
		TotalPrice: decimal.Zero,
		Dishes:     []DishSummary{},
		Sets:       []SetSummary{},
	}
	if agg == nil {
		return summary
	}

	for _, line := range agg.DishItems {
		entry, _ := lookupDish(reader, line.DishID)
		summary.Dishes = append(summary.Dishes, DishSummary{
			DishID:      line.DishID,
			Name:        entry.Name,
			Price:       entry.Price,
			Description: entry.Description,
			Image:       entry.Image,
			Quantity:    line.Quantity,
		})
		summary.TotalItems += line.Quantity
		summary.TotalPrice = summary.TotalPrice.Add(entry.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	for _, line := range agg.SetItems {
		entry, _ := lookupSet(reader, line.SetID)
		dishes := make([]SetDishSummary, 0, len(entry.Dishes))
		for _, component := range entry.Dishes {
			dish, _ := lookupDish(reader, component.DishID)
			dishes = append(dishes, SetDishSummary{
				DishID:   component.DishID,
				Name:     dish.Name,
				Price:    component.Price,
				Quantity: component.Quantity,
			})
		}
		summary.Sets = append(summary.Sets, SetSummary{
			SetID:       line.SetID,
			Name:        entry.Name,
			Price:       entry.Price,
			Description: entry.Description,
			Image:       entry.Image,
			Quantity:    line.Quantity,
			Dishes:      dishes,
		})
		summary.TotalItems += line.Quantity
		summary.TotalPrice = summary.TotalPrice.Add(entry.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return summary
}

func lookupDish(reader catalog.Reader, id int64) (catalog.DishEntry, bool) {
	if reader == nil {
		return catalog.DishEntry{}, false
	}
	return reader.Dish(id)
}

func lookupSet(reader catalog.Reader, id int64) (catalog.SetEntry, bool) {
	if reader == nil {
		return catalog.SetEntry{}, false
	}
	return reader.Set(id)
}
