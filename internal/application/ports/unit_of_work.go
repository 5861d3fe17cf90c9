package ports

import "context"

// UnitOfWork runs a function inside one database transaction. The function
// receives a derived context carrying the transaction; repositories detect it
// and route their statements through it. Returning an error rolls back,
// returning nil commits, a panic rolls back and re-panics.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(txCtx context.Context) error) error
}
