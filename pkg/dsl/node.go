package dsl

import (
	"strconv"

	"github.com/aretw0/arbor/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring one instance.
type NodeBuilder struct {
	id        string
	component string
	props     map[string]any
	children  []child
}

type child struct {
	node *NodeBuilder
	text string
}

// Node starts an instance of component.
func Node(component string) *NodeBuilder {
	return &NodeBuilder{component: component}
}

// ID sets an explicit instance id.
func (n *NodeBuilder) ID(id string) *NodeBuilder {
	n.id = id
	return n
}

// Prop sets one prop.
func (n *NodeBuilder) Prop(key string, value any) *NodeBuilder {
	if n.props == nil {
		n.props = make(map[string]any)
	}
	n.props[key] = value
	return n
}

// Props merges several props.
func (n *NodeBuilder) Props(props map[string]any) *NodeBuilder {
	for k, v := range props {
		n.Prop(k, v)
	}
	return n
}

// Style merges keys into the "style" prop.
func (n *NodeBuilder) Style(key string, value any) *NodeBuilder {
	style, _ := n.props["style"].(map[string]any)
	if style == nil {
		style = make(map[string]any)
	}
	style[key] = value
	return n.Prop("style", style)
}

// Text appends a text child.
func (n *NodeBuilder) Text(text string) *NodeBuilder {
	n.children = append(n.children, child{text: text})
	return n
}

// Children appends instance children.
func (n *NodeBuilder) Children(nodes ...*NodeBuilder) *NodeBuilder {
	for _, c := range nodes {
		n.children = append(n.children, child{node: c})
	}
	return n
}

// Build returns the nested instance, deriving missing ids from fallback.
// It is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build(fallback string) *domain.Instance {
	id := n.id
	if id == "" {
		id = fallback
	}
	inst := domain.New(id, n.component)
	inst.Props = domain.CopyProps(n.props)
	for i, c := range n.children {
		if c.node == nil {
			inst.Children = append(inst.Children, domain.TextChild(c.text))
			continue
		}
		inst.Children = append(inst.Children, domain.InstanceChild(c.node.Build(childID(id, i))))
	}
	return inst
}

func childID(parent string, i int) string {
	return parent + "-" + strconv.Itoa(i)
}
