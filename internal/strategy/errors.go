package strategy

import (
	"errors"
	"fmt"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// asUnavailable tags a fetch error as domain.ErrDataUnavailable unless it is
// already classified.
func asUnavailable(err error) error {
	if errors.Is(err, domain.ErrDataUnavailable) || errors.Is(err, domain.ErrInsufficientHistory) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
}
