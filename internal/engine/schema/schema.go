// Package schema implements the declarative answer-schema tree and the
// state-scoped validator that gates every transition.
package schema

// Kind discriminates the schema node variants.
type Kind string

const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
)

// Condition expresses a cross-field requirement: the annotated field is
// required only when a sibling field holds a specific value.
type Condition struct {
	Sibling string      `json:"sibling"`
	Equals  interface{} `json:"equals"`
}

// Node is one node of the schema tree mirroring the shape of answers.
// Object and Array nodes carry structure; leaf nodes carry a type and
// optional refinement predicates.
type Node struct {
	Kind Kind `json:"kind"`

	// Object
	Fields   map[string]*Node `json:"fields,omitempty"`
	Required []string         `json:"required,omitempty"`
	Open     bool             `json:"open,omitempty"` // allow fields not named in the schema

	// Array
	Elem *Node `json:"elem,omitempty"`

	// Leaf refinements
	Minimum    *float64   `json:"minimum,omitempty"`
	Maximum    *float64   `json:"maximum,omitempty"`
	MinLength  *int       `json:"minLength,omitempty"`
	MaxLength  *int       `json:"maxLength,omitempty"`
	Pattern    string     `json:"pattern,omitempty"`
	Enum       []string   `json:"enum,omitempty"`
	RequiredIf *Condition `json:"requiredIf,omitempty"`
}

// Object builds an object node.
func Object(fields map[string]*Node, required ...string) *Node {
	return &Node{Kind: KindObject, Fields: fields, Required: required}
}

// Array builds an array node.
func Array(elem *Node) *Node {
	return &Node{Kind: KindArray, Elem: elem}
}

// String builds a string leaf.
func String() *Node { return &Node{Kind: KindString} }

// Number builds a number leaf.
func Number() *Node { return &Node{Kind: KindNumber} }

// Integer builds an integer leaf.
func Integer() *Node { return &Node{Kind: KindInteger} }

// Boolean builds a boolean leaf.
func Boolean() *Node { return &Node{Kind: KindBoolean} }

// WithMin sets the numeric lower bound.
func (n *Node) WithMin(min float64) *Node {
	n.Minimum = &min
	return n
}

// WithMax sets the numeric upper bound.
func (n *Node) WithMax(max float64) *Node {
	n.Maximum = &max
	return n
}

// WithLength sets string length bounds. A zero max means unbounded.
func (n *Node) WithLength(min, max int) *Node {
	n.MinLength = &min
	if max > 0 {
		n.MaxLength = &max
	}
	return n
}

// WithPattern sets a regexp the string value must match.
func (n *Node) WithPattern(pattern string) *Node {
	n.Pattern = pattern
	return n
}

// WithEnum restricts the string value to the given set.
func (n *Node) WithEnum(values ...string) *Node {
	n.Enum = values
	return n
}

// RequiredWhen marks the field required only when sibling equals value.
func (n *Node) RequiredWhen(sibling string, value interface{}) *Node {
	n.RequiredIf = &Condition{Sibling: sibling, Equals: value}
	return n
}
