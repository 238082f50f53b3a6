package tree

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// GetPath returns the ids from the root down to id, inclusive.
func (s *Store) GetPath(id string) (domain.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.index[id]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	var path domain.Path
	for cur := id; cur != ""; cur = s.parents[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// FindParentInstance returns a copy of the parent of id, or nil for the root.
func (s *Store) FindParentInstance(id string) (*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.index[id]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	parentID, ok := s.parents[id]
	if !ok {
		return nil, nil
	}
	return s.index[parentID].DeepCopy(), nil
}

// FindClosestSiblingInstance returns a copy of the nearest instance sibling of id
// in the given direction. Text leaves are skipped. Returns nil at either edge
// and for the root.
func (s *Store) FindClosestSiblingInstance(id string, dir domain.Direction) (*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.index[id]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	parentID, ok := s.parents[id]
	if !ok {
		return nil, nil
	}
	sib := closestSibling(s.index[parentID], id, dir)
	if sib == nil {
		return nil, nil
	}
	return sib.DeepCopy(), nil
}

// SiblingIndex returns the position of id in its parent's children list.
func (s *Store) SiblingIndex(id string) (parentID string, index int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.index[id]; !ok {
		return "", 0, fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	parentID, ok := s.parents[id]
	if !ok {
		return "", 0, fmt.Errorf("%w: root has no siblings", domain.ErrInvalidTarget)
	}
	return parentID, s.index[parentID].ChildIndex(id), nil
}

func closestSibling(parent *domain.Instance, id string, dir domain.Direction) *domain.Instance {
	pos := parent.ChildIndex(id)
	step := 1
	if dir == domain.Prev {
		step = -1
	}
	for i := pos + step; i >= 0 && i < len(parent.Children); i += step {
		if c := parent.Children[i]; c.Instance != nil {
			return c.Instance
		}
	}
	return nil
}
