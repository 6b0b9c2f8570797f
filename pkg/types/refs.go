package types

import (
	"fmt"
	"regexp"
)

// Reference points at an attribute of another resource node's handle.
// References appear inside specs as ${ref:node:attr} tokens and are
// substituted by the provisioning engine once the referenced node exists.
type Reference struct {
	NodeID    string
	Attribute string
}

func (r Reference) String() string {
	return fmt.Sprintf("${ref:%s:%s}", r.NodeID, r.Attribute)
}

// Ref builds a reference token for an attribute of a resource node
func Ref(nodeID, attribute string) string {
	return Reference{NodeID: nodeID, Attribute: attribute}.String()
}

var refPattern = regexp.MustCompile(`\$\{ref:([^:}]+):([^:}]+)\}`)

// ParseRefs extracts every reference token embedded in s
func ParseRefs(s string) []Reference {
	matches := refPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, Reference{NodeID: m[1], Attribute: m[2]})
	}
	return refs
}

// SubstituteRefs replaces every reference token in s using lookup.
// Substitution fails on the first reference lookup cannot satisfy.
func SubstituteRefs(s string, lookup func(Reference) (string, error)) (string, error) {
	var lookupErr error
	out := refPattern.ReplaceAllStringFunc(s, func(token string) string {
		if lookupErr != nil {
			return token
		}
		m := refPattern.FindStringSubmatch(token)
		value, err := lookup(Reference{NodeID: m[1], Attribute: m[2]})
		if err != nil {
			lookupErr = err
			return token
		}
		return value
	})
	if lookupErr != nil {
		return "", lookupErr
	}
	return out, nil
}
