// Package tx defines the unit-of-work contract used by domain services.
package tx

import (
	"context"
)

// Manager runs a function inside one atomic unit of work.
//
// If fn returns an error every write made through ctx is rolled back.
// Nested calls reuse the transaction already carried by ctx, so a service
// may call another service's transactional method without splitting the unit.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
