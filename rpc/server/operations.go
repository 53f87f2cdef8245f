package server

import (
	"fmt"
	"regexp"
	"strings"
)

// OperationTable maps operation names to canonical operation keys. Names are
// folded before the lookup (upper case, every run of spaces, hyphens and
// underscores replaced by a single underscore). Every canonical key is also
// registered without its underscores, so "create user", "create-user",
// "createUser" and "CREATE_USER" all resolve to the same operation while
// "CR-EATE USER" does not.
//
// The table is filled before the server starts and is read only afterwards.
type OperationTable struct {
	ops map[string]string
}

// NewOperationTable creates a table containing the given canonical keys
func NewOperationTable(canonical ...string) *OperationTable {
	t := &OperationTable{ops: make(map[string]string, len(canonical))}
	for _, op := range canonical {
		t.ops[foldOperation(op)] = op
		if compact := strings.ReplaceAll(foldOperation(op), "_", ""); compact != "" {
			t.ops[compact] = op
		}
	}
	return t
}

// Alias registers an additional name for a canonical operation
func (t *OperationTable) Alias(alias, canonical string) error {
	if _, ok := t.Lookup(canonical); !ok {
		return fmt.Errorf("unknown operation %s", canonical)
	}
	folded := foldOperation(alias)
	if folded == "" {
		return fmt.Errorf("empty alias for %s", canonical)
	}
	if existing, ok := t.ops[folded]; ok && existing != canonical {
		return fmt.Errorf("alias %s already maps to %s", alias, existing)
	}
	t.ops[folded] = canonical
	return nil
}

// Lookup returns the canonical key for an operation name
func (t *OperationTable) Lookup(name string) (string, bool) {
	op, ok := t.ops[foldOperation(name)]
	return op, ok
}

// Operations returns the canonical keys of the table
func (t *OperationTable) Operations() []string {
	seen := make(map[string]struct{}, len(t.ops))
	ops := make([]string, 0, len(t.ops))
	for _, op := range t.ops {
		if _, ok := seen[op]; ok {
			continue
		}
		seen[op] = struct{}{}
		ops = append(ops, op)
	}
	return ops
}

var separators = regexp.MustCompile(`[\s_-]+`)

func foldOperation(name string) string {
	name = strings.Trim(strings.TrimSpace(name), "_-")
	return strings.ToUpper(separators.ReplaceAllString(name, "_"))
}
