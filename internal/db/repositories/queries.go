// queries.go bundles every repository over one sqlx.ExtContext so callers holding a transaction can
// reach all entity queries through a single value.
package repositories

import "github.com/jmoiron/sqlx"

// Queries aggregates the repositories bound to one connection or transaction
type Queries struct {
	*UserRepository
	*ShopRepository
	*AssignmentRepository
	*GrantRepository
	*ApprovalRepository
	*AuditRepository
	*RecordRepository
}

// NewQueries binds all repositories to db
func NewQueries(db sqlx.ExtContext) *Queries {
	return &Queries{
		UserRepository:       NewUserRepository(db),
		ShopRepository:       NewShopRepository(db),
		AssignmentRepository: NewAssignmentRepository(db),
		GrantRepository:      NewGrantRepository(db),
		ApprovalRepository:   NewApprovalRepository(db),
		AuditRepository:      NewAuditRepository(db),
		RecordRepository:     NewRecordRepository(db),
	}
}
