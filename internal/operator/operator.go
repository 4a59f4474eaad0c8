package operator

import (
	"time"

	"github.com/google/uuid"
)

type ContextKey string

const OperatorKey ContextKey = "operator"

// Operator is a person allowed to run administrative tournament actions.
type Operator struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	Username   string    `db:"username" json:"username"`
	Provider   string    `db:"provider" json:"provider"`
	ProviderID string    `db:"provider_id" json:"provider_id"`
	AvatarURL  *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Allowlist holds the provider account ids permitted to operate.
type Allowlist map[string]struct{}

func NewAllowlist(ids []string) Allowlist {
	a := make(Allowlist, len(ids))
	for _, id := range ids {
		if id != "" {
			a[id] = struct{}{}
		}
	}
	return a
}

func (a Allowlist) Allows(o *Operator) bool {
	if o == nil {
		return false
	}
	_, ok := a[o.ProviderID]
	return ok
}
