package catalog

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/pizza-club-orders/internal/apperr"
)

var (
	ErrPizzaNotFound   = errors.New("pizza not found")
	ErrSizeUnavailable = errors.New("size unavailable")
)

func pizzaNotFound(name string) error {
	return apperr.Wrap(apperr.KindNotFound, fmt.Sprintf("Pizza '%s' not found", name), ErrPizzaNotFound)
}

func sizeUnavailable(name string, size Size) error {
	msg := fmt.Sprintf("Size '%s' for pizza '%s' is not available yet", size, name)
	return apperr.Wrap(apperr.KindNotFound, msg, ErrSizeUnavailable)
}
