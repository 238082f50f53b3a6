package schema

import (
	"fmt"
	"sort"

	"github.com/aretw0/arbor/pkg/domain"
)

// TreeOption adds checks to ValidateTree.
type TreeOption func(*treeChecks)

type treeChecks struct {
	accepts func(component string) bool
}

// WithContainers rejects instances with children, text or instances, whose
// component accepts reports false for.
func WithContainers(accepts func(component string) bool) TreeOption {
	return func(c *treeChecks) {
		c.accepts = accepts
	}
}

// ValidateTree checks that a flat tree describes exactly one well-formed tree.
// known reports whether a component type exists; nil accepts every component.
func ValidateTree(tree domain.SerializedTree, known func(component string) bool, opts ...TreeOption) error {
	var checks treeChecks
	for _, opt := range opts {
		opt(&checks)
	}
	var errs []error

	if tree.Root == "" {
		errs = append(errs, &ValidationError{Key: "root", Reason: "required"})
		return aggregate(errs)
	}
	if _, ok := tree.Instances[tree.Root]; !ok {
		errs = append(errs, &ValidationError{Key: "root", Reason: "references a missing instance", Value: tree.Root})
		return aggregate(errs)
	}

	ids := make([]string, 0, len(tree.Instances))
	for id := range tree.Instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	referenced := make(map[string]string, len(ids))
	for _, id := range ids {
		inst := tree.Instances[id]
		if inst.ID != id {
			errs = append(errs, &ValidationError{Key: id, Reason: "id does not match its key", Value: inst.ID})
		}
		if inst.Component == "" {
			errs = append(errs, &ValidationError{Key: id, Reason: "component is required"})
		} else if known != nil && !known(inst.Component) {
			errs = append(errs, &ValidationError{Key: id, Reason: "unknown component", Value: inst.Component})
		} else if checks.accepts != nil && len(inst.Children) > 0 && !checks.accepts(inst.Component) {
			errs = append(errs, &ValidationError{Key: id, Reason: "component cannot have children", Value: inst.Component})
		}
		for i, c := range inst.Children {
			switch c.Type {
			case domain.ChildText:
			case domain.ChildID:
				if _, ok := tree.Instances[c.Value]; !ok {
					errs = append(errs, &ValidationError{Key: id, Reason: fmt.Sprintf("child %d references a missing instance", i), Value: c.Value})
					continue
				}
				if c.Value == tree.Root {
					errs = append(errs, &ValidationError{Key: id, Reason: "root cannot be a child", Value: c.Value})
					continue
				}
				if prev, dup := referenced[c.Value]; dup {
					errs = append(errs, &ValidationError{Key: id, Reason: fmt.Sprintf("child already owned by %q", prev), Value: c.Value})
					continue
				}
				referenced[c.Value] = id
			default:
				errs = append(errs, &ValidationError{Key: id, Reason: fmt.Sprintf("child %d has unknown type", i), Value: c.Type})
			}
		}
	}

	// Anything not reachable from the root is an orphan or part of a detached cycle.
	reached := make(map[string]bool, len(ids))
	stack := []string{tree.Root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[id] {
			continue
		}
		reached[id] = true
		for _, c := range tree.Instances[id].Children {
			if c.Type == domain.ChildID {
				if _, ok := tree.Instances[c.Value]; ok {
					stack = append(stack, c.Value)
				}
			}
		}
	}
	for _, id := range ids {
		if !reached[id] {
			errs = append(errs, &ValidationError{Key: id, Reason: "not reachable from root"})
		}
	}

	return aggregate(errs)
}
