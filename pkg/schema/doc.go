// Package schema validates serialized instance trees and component props.
//
// Tree validation checks the structural rules of a flat tree: a present root,
// known component types, child references that resolve exactly once, and no
// unreachable or cyclic instances. WithContainers also rejects children under
// components that cannot hold them. Every failure is collected, so callers get
// the full list instead of the first problem:
//
//	err := schema.ValidateTree(tree, known, schema.WithContainers(reg.CanAcceptChild))
//	for _, e := range schema.ValidationErrors(err) {
//	    log.Println(e)
//	}
//
// Prop schemas map prop names to types parsed from short type strings:
//
//	props, err := schema.ParseTypeMap(map[string]string{
//	    "href":    "string",
//	    "columns": "int",
//	    "tags":    "[string]",
//	})
package schema
