package middleware_test

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// MockStore is a map-based store exposing exactly what was written.
type MockStore struct {
	mu   sync.Mutex
	data map[string]*domain.Document
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Document),
	}
}

func (s *MockStore) Save(ctx context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[doc.ID] = doc.Clone()
	return nil
}

func (s *MockStore) Load(ctx context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.data[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (s *MockStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ ports.DocumentStore = (*MockStore)(nil)

func secretDocument(id string) *domain.Document {
	root := domain.New("root", "Body")
	form := domain.New("login", "Form")
	input := domain.New("pw", "Input")
	input.Props = map[string]any{
		"value":        "hunter2",
		"name":         "user_password",
		"style":        map[string]any{"color": "red", "api_token": "abc"},
		"access_token": map[string]any{"nested": "gone"},
	}
	form.Children = append(form.Children, domain.InstanceChild(input), domain.TextChild("Sign in"))
	root.Children = append(root.Children, domain.InstanceChild(form))
	return &domain.Document{ID: id, Version: 7, Tree: domain.Flatten(root)}
}
