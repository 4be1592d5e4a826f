// Package quota resolves how many snippets a user may own.
//
// The snippet store never decides limits itself: it is handed the limit
// returned by a Policy and enforces it inside the insert transaction.
package quota

import (
	"strings"

	"github.com/sakif/snippet-vault/internal/model"
)

const (
	DefaultLimit  = 40
	ElevatedLimit = 75

	TierDefault  = "default"
	TierElevated = "elevated"
)

// Policy maps a user identity to a quota tier.
type Policy interface {
	Resolve(userID string) model.QuotaTier
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(userID string) model.QuotaTier

func (f PolicyFunc) Resolve(userID string) model.QuotaTier { return f(userID) }

// AllowListPolicy grants the elevated tier to a fixed set of user ids and the
// default tier to everyone else. The zero value is not usable; build it with
// NewAllowListPolicy.
type AllowListPolicy struct {
	defaultLimit  int
	elevatedLimit int
	privileged    map[string]struct{}
}

// NewAllowListPolicy builds a policy. Non-positive limits fall back to
// DefaultLimit and ElevatedLimit; blank ids are ignored.
func NewAllowListPolicy(defaultLimit, elevatedLimit int, privilegedIDs []string) *AllowListPolicy {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if elevatedLimit <= 0 {
		elevatedLimit = ElevatedLimit
	}

	privileged := make(map[string]struct{}, len(privilegedIDs))
	for _, id := range privilegedIDs {
		if id = strings.TrimSpace(id); id != "" {
			privileged[id] = struct{}{}
		}
	}

	return &AllowListPolicy{
		defaultLimit:  defaultLimit,
		elevatedLimit: elevatedLimit,
		privileged:    privileged,
	}
}

func (p *AllowListPolicy) Resolve(userID string) model.QuotaTier {
	if _, ok := p.privileged[userID]; ok {
		return model.QuotaTier{Name: TierElevated, Limit: p.elevatedLimit, Privileged: true}
	}
	return model.QuotaTier{Name: TierDefault, Limit: p.defaultLimit}
}
