package schema_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(id string) domain.SerializedChild {
	return domain.SerializedChild{Type: domain.ChildID, Value: id}
}

func inst(id, component string, children ...domain.SerializedChild) domain.SerializedInstance {
	if children == nil {
		children = []domain.SerializedChild{}
	}
	return domain.SerializedInstance{ID: id, Component: component, Children: children}
}

func validTree() domain.SerializedTree {
	return domain.SerializedTree{
		Root: "root",
		Instances: map[string]domain.SerializedInstance{
			"root": inst("root", "Body", ref("a"), domain.SerializedChild{Type: domain.ChildText, Value: "hi"}),
			"a":    inst("a", "Box", ref("b")),
			"b":    inst("b", "Box"),
		},
	}
}

func TestValidateTree_Valid(t *testing.T) {
	assert.NoError(t, schema.ValidateTree(validTree(), nil))
}

func TestValidateTree_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.SerializedTree)
		reason string
	}{
		{"missing root", func(tr *domain.SerializedTree) { tr.Root = "" }, "required"},
		{"dangling root", func(tr *domain.SerializedTree) { tr.Root = "zzz" }, "missing instance"},
		{"dangling child", func(tr *domain.SerializedTree) {
			tr.Instances["b"] = inst("b", "Box", ref("ghost"))
		}, "references a missing instance"},
		{"shared child", func(tr *domain.SerializedTree) {
			tr.Instances["root"] = inst("root", "Body", ref("a"), ref("b"))
		}, "already owned"},
		{"orphan", func(tr *domain.SerializedTree) {
			tr.Instances["lost"] = inst("lost", "Box")
		}, "not reachable"},
		{"detached cycle", func(tr *domain.SerializedTree) {
			tr.Instances["x"] = inst("x", "Box", ref("y"))
			tr.Instances["y"] = inst("y", "Box", ref("x"))
		}, "not reachable"},
		{"root as child", func(tr *domain.SerializedTree) {
			tr.Instances["b"] = inst("b", "Box", ref("root"))
		}, "root cannot be a child"},
		{"key mismatch", func(tr *domain.SerializedTree) {
			tr.Instances["b"] = inst("other", "Box")
		}, "does not match"},
		{"bad child type", func(tr *domain.SerializedTree) {
			tr.Instances["b"] = inst("b", "Box", domain.SerializedChild{Type: "blob", Value: "x"})
		}, "unknown type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := validTree()
			tt.mutate(&tree)
			err := schema.ValidateTree(tree, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.reason)
			assert.NotEmpty(t, schema.ValidationErrors(err))
		})
	}
}

func TestValidateTree_UnknownComponent(t *testing.T) {
	known := func(c string) bool { return c == "Body" }
	err := schema.ValidateTree(validTree(), known)
	require.Error(t, err)
	assert.Len(t, schema.ValidationErrors(err), 2)
}

func TestValidateTree_Containers(t *testing.T) {
	accepts := func(c string) bool { return c != "Image" }
	assert.NoError(t, schema.ValidateTree(validTree(), nil, schema.WithContainers(accepts)))

	tree := validTree()
	tree.Instances["b"] = inst("b", "Image", ref("c"))
	tree.Instances["c"] = inst("c", "Box")
	err := schema.ValidateTree(tree, nil, schema.WithContainers(accepts))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot have children")

	tree = validTree()
	tree.Instances["b"] = inst("b", "Image", domain.SerializedChild{Type: domain.ChildText, Value: "caption"})
	err = schema.ValidateTree(tree, nil, schema.WithContainers(accepts))
	require.Error(t, err)
	assert.Len(t, schema.ValidationErrors(err), 1)
}

func TestValidateProps(t *testing.T) {
	s, err := schema.ParseTypeMap(map[string]string{
		"href":  "string",
		"cols":  "int",
		"tags":  "[string]",
		"style": "object",
	})
	require.NoError(t, err)

	assert.NoError(t, schema.ValidateProps(s, map[string]any{
		"href":    "/home",
		"cols":    float64(3),
		"tags":    []any{"a", "b"},
		"style":   map[string]any{"color": "red"},
		"unknown": 1,
		"remove":  nil,
	}))

	err = schema.ValidateProps(s, map[string]any{"href": 1, "cols": 2.5, "tags": []any{"a", 3}})
	require.Error(t, err)
	assert.Len(t, schema.ValidationErrors(err), 3)

	_, err = schema.ParseTypeMap(map[string]string{"x": "complex"})
	assert.Error(t, err)
}
