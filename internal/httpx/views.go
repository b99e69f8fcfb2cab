package httpx

import (
	"time"

	"github.com/ariefcatur/pizza-club-orders/internal/catalog"
	"github.com/ariefcatur/pizza-club-orders/internal/orders"
)

type itemView struct {
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
	Size     string `json:"size"`
	Price    string `json:"price"`
}

type orderView struct {
	ID         int64      `json:"id"`
	TotalPrice string     `json:"total_price"`
	CreatedOn  time.Time  `json:"created_on"`
	Status     string     `json:"status"`
	Items      []itemView `json:"items"`
}

func toOrderView(o orders.Order) orderView {
	v := orderView{
		ID:         o.ID,
		TotalPrice: o.TotalPrice.StringFixed(2),
		CreatedOn:  o.CreatedOn,
		Status:     string(o.Status),
		Items:      make([]itemView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, itemView{
			Quantity: it.Quantity,
			Name:     it.PizzaName,
			Size:     string(it.Size),
			Price:    it.UnitPrice.StringFixed(2),
		})
	}
	return v
}

type sizeView struct {
	Size     string `json:"size"`
	Grammage int    `json:"grammage"`
	Price    string `json:"price"`
	Rating   int    `json:"rating"`
}

type pizzaView struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Ingredients string     `json:"ingredients"`
	PhotoURL    string     `json:"photo_url"`
	Sizes       []sizeView `json:"sizes"`
}

func toPizzaView(p catalog.Pizza) pizzaView {
	v := pizzaView{ID: p.ID, Name: p.Name, Ingredients: p.Ingredients, PhotoURL: p.PhotoURL, Sizes: []sizeView{}}
	for _, s := range p.Sizes {
		v.Sizes = append(v.Sizes, sizeView{Size: string(s.Size), Grammage: s.Grammage, Price: s.Price.StringFixed(2), Rating: s.Rating})
	}
	return v
}
