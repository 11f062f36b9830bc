package core

import "context"

// Transactor runs fn inside a single store transaction.
// Repository calls made with the context handed to fn join that transaction;
// fn returning an error rolls everything back. Nested calls reuse the outer transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
