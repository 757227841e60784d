package ports

import (
	"context"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

// Authorizer answers whether a role may perform act on obj.
type Authorizer interface {
	Authorize(ctx context.Context, role domain.Role, obj, act string) (bool, error)
}
