package services

import (
	"context"
	"log/slog"

	"budget/internal/core"
)

// CategoryStore is the persistence contract for categories. Lookups that find
// nothing return core.ErrNotFound.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c *core.Category) error
	GetCategory(ctx context.Context, id int64) (*core.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c *core.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

// CategoryService manages the transaction category taxonomy.
type CategoryService struct {
	store CategoryStore
}

func NewCategoryService(store CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

func (s *CategoryService) CreateCategory(ctx context.Context, c core.Category) (*core.Category, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateCategory(ctx, &c); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name)
	return &c, nil
}

func (s *CategoryService) GetCategory(ctx context.Context, id int64) (*core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *CategoryService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

// UpdateCategory renames a category and changes its default type.
func (s *CategoryService) UpdateCategory(ctx context.Context, id int64, c core.Category) (*core.Category, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Name = c.Name
	existing.DefaultType = c.DefaultType

	if err := s.store.UpdateCategory(ctx, existing); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Category updated", "id", id, "name", existing.Name)
	return existing, nil
}

func (s *CategoryService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category deleted", "id", id)
	return nil
}
