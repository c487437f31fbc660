package port

import (
	"context"

	"github.com/campuscafe/ordering/internal/core/domain"
)

type MenuCatalog interface {
	// FindByName looks up a menu entry by its exact name. Returns
	// (nil, nil) when no entry matches.
	FindByName(ctx context.Context, name string) (*domain.MenuEntry, error)
}
