// Package policy provides a simple, optional admission layer that can be
// attached to a submission via context.  It is deliberately decoupled from
// the rest of the pool so that using it is entirely opt-in – callers that do
// not embed the Policy in their context keep the default "auto" behaviour.

package policy

import (
	"context"
	"errors"
	"strings"
)

// Admission modes recognised by the pool.
const (
	ModeAsk  = "ask"  // ask the callback before every submission
	ModeAuto = "auto" // admit automatically (default)
	ModeDeny = "deny" // block submission
)

// ErrDenied is the synchronous rejection returned by submit when the policy
// blocks the task.
var ErrDenied = errors.New("policy: submission denied")

// AskFunc is invoked when Mode==ask.  Returning true admits the task, false
// rejects it.  Implementations MAY mutate the policy (for example switching
// to ModeAuto after the first approval).
type AskFunc func(
	ctx context.Context,
	kind string, // task kind, empty for untyped submissions
	payload interface{}, // the submitted payload, may be nil
	p *Policy,
) bool

// Policy represents the admission settings applied at submission time.
//
//   - Mode controls the high-level behaviour (ask / auto / deny).
//   - AllowList, BlockList filter by task kind regardless of Mode.
//   - Ask is only used when Mode==ask.
//
// A nil *Policy means "admit everything" and is therefore the zero-cost
// default.
type Policy struct {
	Mode      string   // ask / auto / deny      (default = auto)
	AllowList []string // whitelist (empty => all kinds)
	BlockList []string // blacklist
	Ask       AskFunc  // used only when Mode==ask
}

// Config represents the declarative, serialisable part of a Policy.
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:      p.Mode,
		AllowList: append([]string(nil), p.AllowList...),
		BlockList: append([]string(nil), p.BlockList...),
	}
}

// FromConfig converts a stored Config back to a runtime Policy (without
// AskFunc).
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:      c.Mode,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// IsAllowed evaluates AllowList / BlockList against a task kind.  Both lists
// match by exact, case-insensitive comparison.
func (p *Policy) IsAllowed(kind string) bool {
	if p == nil {
		return true
	}
	normalized := strings.ToLower(kind)

	// BlockList has priority.
	for _, b := range p.BlockList {
		if normalized == strings.ToLower(b) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, a := range p.AllowList {
		if normalized == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// Admit applies the full policy: list filtering first, then the mode.
func (p *Policy) Admit(ctx context.Context, kind string, payload interface{}) error {
	if p == nil {
		return nil
	}
	if !p.IsAllowed(kind) {
		return ErrDenied
	}
	switch strings.ToLower(p.Mode) {
	case ModeDeny:
		return ErrDenied
	case ModeAsk:
		if p.Ask != nil && !p.Ask(ctx, kind, payload, p) {
			return ErrDenied
		}
	}
	return nil
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy when present.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
