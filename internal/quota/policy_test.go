package quota

import (
	"testing"

	"github.com/sakif/snippet-vault/internal/model"
)

func TestAllowListPolicy_Resolve(t *testing.T) {
	p := NewAllowListPolicy(40, 75, []string{"admin-1", " admin-2 ", ""})

	tests := []struct {
		userID string
		want   model.QuotaTier
	}{
		{"admin-1", model.QuotaTier{Name: TierElevated, Limit: 75, Privileged: true}},
		{"admin-2", model.QuotaTier{Name: TierElevated, Limit: 75, Privileged: true}},
		{"someone", model.QuotaTier{Name: TierDefault, Limit: 40}},
		{"", model.QuotaTier{Name: TierDefault, Limit: 40}},
	}

	for _, tt := range tests {
		if got := p.Resolve(tt.userID); got != tt.want {
			t.Errorf("Resolve(%q) = %+v, want %+v", tt.userID, got, tt.want)
		}
	}
}

func TestNewAllowListPolicy_Defaults(t *testing.T) {
	p := NewAllowListPolicy(0, -1, nil)

	if got := p.Resolve("anyone").Limit; got != DefaultLimit {
		t.Errorf("default limit = %d, want %d", got, DefaultLimit)
	}
	if got := p.elevatedLimit; got != ElevatedLimit {
		t.Errorf("elevated limit = %d, want %d", got, ElevatedLimit)
	}
}

func TestPolicyFunc(t *testing.T) {
	var p Policy = PolicyFunc(func(string) model.QuotaTier {
		return model.QuotaTier{Name: "tiny", Limit: 1}
	})

	if got := p.Resolve("x").Limit; got != 1 {
		t.Errorf("Limit = %d, want 1", got)
	}
}
