package rbac

import (
	"context"
	"strings"
)

// Permissions gating the quiz routes.
const (
	PermQuizView        = "quiz:view"
	PermQuizStats       = "quiz:stats"
	PermAttemptCreate   = "attempt:create"
	PermAttemptSave     = "attempt:save"
	PermAttemptFinalize = "attempt:finalize"
	PermAttemptViewOwn  = "attempt:view-own"
	PermAttemptViewAll  = "attempt:view-all"
)

// Checker answers role/permission questions from a compiled rule table.
// A rule is an exact permission, "*" or a "prefix:*" wildcard.
type Checker struct {
	exact    map[string]map[string]bool
	prefixes map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	c := &Checker{exact: map[string]map[string]bool{}, prefixes: map[string][]string{}}
	for role, rules := range rp {
		set := map[string]bool{}
		for _, rule := range rules {
			if strings.HasSuffix(rule, "*") {
				c.prefixes[role] = append(c.prefixes[role], strings.TrimSuffix(rule, "*"))
				continue
			}
			set[rule] = true
		}
		c.exact[role] = set
	}
	return c
}

func (c *Checker) Has(role, perm string) bool {
	if c.exact[role][perm] {
		return true
	}
	for _, p := range c.prefixes[role] {
		if strings.HasPrefix(perm, p) {
			return true
		}
	}
	return false
}

// Any reports whether role holds at least one of perms.
func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

type ctxKey struct{}

// WithRole records the effective role of the acting user.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}
