package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/pizza-club-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB postgres.DBTX }

// FindVariant resolves a pizza name and size label to its priced variant. An unknown
// name and a known name without that size fail with different not-found errors.
func (r *Repo) FindVariant(ctx context.Context, name string, size Size) (SizeVariant, error) {
	var pizzaID int64
	err := r.DB.QueryRow(ctx, `SELECT id FROM pizzas WHERE name=$1`, name).Scan(&pizzaID)
	if errors.Is(err, pgx.ErrNoRows) {
		return SizeVariant{}, pizzaNotFound(name)
	}
	if err != nil {
		return SizeVariant{}, fmt.Errorf("find pizza %q: %w", name, err)
	}

	v := SizeVariant{PizzaID: pizzaID, PizzaName: name}
	err = r.DB.QueryRow(ctx, `
		SELECT id, size, grammage, price, rating
		FROM pizza_sizes WHERE pizza_id=$1 AND size=$2`, pizzaID, string(size),
	).Scan(&v.ID, &v.Size, &v.Grammage, &v.Price, &v.Rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return SizeVariant{}, sizeUnavailable(name, size)
	}
	if err != nil {
		return SizeVariant{}, fmt.Errorf("find size %q of %q: %w", size, name, err)
	}
	return v, nil
}

func (r *Repo) BumpPopularity(ctx context.Context, variantID int64, delta int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE pizza_sizes SET rating = rating + $2, updated_on = now()
		WHERE id=$1`, variantID, delta)
	if err != nil {
		return fmt.Errorf("bump popularity of size %d: %w", variantID, err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("bump popularity: size %d vanished", variantID)
	}
	return nil
}

// ListMenu returns every pizza with its sizes, smallest first.
func (r *Repo) ListMenu(ctx context.Context) ([]Pizza, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.name, p.ingredients, p.photo_url, p.created_on,
		       s.id, s.size, s.grammage, s.price, s.rating
		FROM pizzas p
		LEFT JOIN pizza_sizes s ON s.pizza_id = p.id
		ORDER BY p.id,
		         CASE s.size WHEN 's' THEN 1 WHEN 'm' THEN 2 WHEN 'l' THEN 3 WHEN 'j' THEN 4 END`)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	defer rows.Close()

	var out []Pizza
	for rows.Next() {
		var (
			p        Pizza
			sizeID   *int64
			size     *string
			grammage *int
			price    decimal.NullDecimal
			rating   *int
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Ingredients, &p.PhotoURL, &p.CreatedOn,
			&sizeID, &size, &grammage, &price, &rating); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != p.ID {
			p.Sizes = []SizeVariant{}
			out = append(out, p)
		}
		if sizeID == nil {
			continue
		}
		cur := &out[len(out)-1]
		cur.Sizes = append(cur.Sizes, SizeVariant{
			ID:        *sizeID,
			PizzaID:   cur.ID,
			PizzaName: cur.Name,
			Size:      Size(*size),
			Grammage:  *grammage,
			Price:     price.Decimal,
			Rating:    *rating,
		})
	}
	return out, rows.Err()
}
