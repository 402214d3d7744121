// Package repo defines the generic Repository interface and list options.
package repo

import "context"

// Repository is a generic CRUD interface with idempotent upsert.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	// Merge creates the entity or updates it in place when the ID already
	// exists. Re-running a merge with identical data is a no-op.
	Merge(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination and filtering for List operations.
type ListOpts struct {
	Offset int
	Limit  int
	Filter map[string]any
}
