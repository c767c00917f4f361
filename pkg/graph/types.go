// Package graph defines the typed node/edge data model shared by every
// GraphForge subsystem: the Format E codec, the graph store, the unified
// data service, and everything downstream of them.
package graph

import (
	"fmt"
	"strings"
	"time"
)

// NodeType is one of a closed set of domain tags. Node and edge kinds form
// finite sets, so they are modeled as sum types rather than open strings:
// any value outside the constants below is invalid and must be rejected at
// the parsing boundary.
type NodeType string

const (
	NodeSystem       NodeType = "SYS"
	NodeUseCase      NodeType = "UC"
	NodeActor        NodeType = "ACTOR"
	NodeFunctionChain NodeType = "FCHAIN"
	NodeFunction     NodeType = "FUNC"
	NodeFlow         NodeType = "FLOW"
	NodeRequirement  NodeType = "REQ"
	NodeTest         NodeType = "TEST"
	NodeModule       NodeType = "MOD"
	NodeSchema       NodeType = "SCHEMA"
)

// nodeTypeAbbrevs maps each NodeType to the two-letter abbreviation used in
// a semantic ID (Name.TypeAbbr.NNN). UC is already two letters and doubles
// as its own abbreviation.
var nodeTypeAbbrevs = map[NodeType]string{
	NodeSystem:        "SY",
	NodeUseCase:       "UC",
	NodeActor:         "AC",
	NodeFunctionChain: "FC",
	NodeFunction:      "FN",
	NodeFlow:          "FL",
	NodeRequirement:   "RQ",
	NodeTest:          "TE",
	NodeModule:        "MO",
	NodeSchema:        "SC",
}

var abbrevToNodeType = func() map[string]NodeType {
	m := make(map[string]NodeType, len(nodeTypeAbbrevs))
	for t, a := range nodeTypeAbbrevs {
		m[a] = t
	}
	return m
}()

// Abbrev returns the two-letter semantic-ID type abbreviation for t.
func (t NodeType) Abbrev() string {
	return nodeTypeAbbrevs[t]
}

// Valid reports whether t is one of the ten known node types.
func (t NodeType) Valid() bool {
	_, ok := nodeTypeAbbrevs[t]
	return ok
}

// NodeTypeFromAbbrev resolves a semantic-ID type abbreviation (e.g. "SY")
// back to its NodeType. Returns an error for an unrecognized abbreviation.
func NodeTypeFromAbbrev(abbrev string) (NodeType, error) {
	t, ok := abbrevToNodeType[strings.ToUpper(abbrev)]
	if !ok {
		return "", fmt.Errorf("graph: unknown node type abbreviation %q", abbrev)
	}
	return t, nil
}

// EdgeType is one of a closed set of six relation kinds.
type EdgeType string

const (
	EdgeCompose  EdgeType = "compose"
	EdgeIO       EdgeType = "io"
	EdgeSatisfy  EdgeType = "satisfy"
	EdgeVerify   EdgeType = "verify"
	EdgeAllocate EdgeType = "allocate"
	EdgeRelation EdgeType = "relation"
)

// edgeArrows maps each EdgeType to its Format E arrow abbreviation.
var edgeArrows = map[EdgeType]string{
	EdgeCompose:  "cp",
	EdgeIO:       "io",
	EdgeSatisfy:  "sat",
	EdgeVerify:   "ver",
	EdgeAllocate: "alc",
	EdgeRelation: "rel",
}

var arrowToEdgeType = func() map[string]EdgeType {
	m := make(map[string]EdgeType, len(edgeArrows))
	for t, a := range edgeArrows {
		m[a] = t
	}
	return m
}()

// Arrow returns the Format E arrow token for t (e.g. "cp" for compose).
func (t EdgeType) Arrow() string {
	return edgeArrows[t]
}

// Valid reports whether t is one of the six known edge types.
func (t EdgeType) Valid() bool {
	_, ok := edgeArrows[t]
	return ok
}

// EdgeTypeFromArrow resolves a Format E arrow token (e.g. "cp") to its
// EdgeType. Returns an error for an unrecognized arrow.
func EdgeTypeFromArrow(arrow string) (EdgeType, error) {
	t, ok := arrowToEdgeType[strings.ToLower(arrow)]
	if !ok {
		return "", fmt.Errorf("graph: unknown edge arrow %q", arrow)
	}
	return t, nil
}

// Direction selects which adjacency index to traverse in GetEdgesFor.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// Node is a single vertex in the graph, identified by a human-readable
// semantic ID with a parallel internal UUID for referential stability
// across renames.
type Node struct {
	SemanticID  string
	UUID        string
	Type        NodeType
	Name        string
	Description string
	// Attributes is free-form string-to-JSON-value storage. Well-known keys
	// include "phase" (1..4), "volatility" (low|medium|high), and layout
	// hints "x", "y", "zoom".
	Attributes map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a deep-enough copy of n safe to hand to a caller that must
// not observe later mutations to the store's authoritative copy.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Attributes != nil {
		cp.Attributes = make(map[string]any, len(n.Attributes))
		for k, v := range n.Attributes {
			cp.Attributes[k] = v
		}
	}
	return &cp
}

// EdgeKey is the composite identity of an edge: (sourceId, type, targetId).
// Two edges with the same key are considered the same edge for uniqueness
// purposes regardless of UUID.
type EdgeKey struct {
	SourceID string
	Type     EdgeType
	TargetID string
}

// String renders the key in "Source -arrow-> Target" form, matching Format E.
func (k EdgeKey) String() string {
	return fmt.Sprintf("%s -%s-> %s", k.SourceID, k.Type.Arrow(), k.TargetID)
}

// Less provides the lexicographic ordering used by formate.SerializeGraph: by
// source, then type, then target.
func (k EdgeKey) Less(other EdgeKey) bool {
	if k.SourceID != other.SourceID {
		return k.SourceID < other.SourceID
	}
	if k.Type != other.Type {
		return k.Type < other.Type
	}
	return k.TargetID < other.TargetID
}

// Edge is a directed, typed relation between two nodes, addressed by their
// semantic IDs.
type Edge struct {
	UUID      string
	SourceID  string
	TargetID  string
	Type      EdgeType
	CreatedAt time.Time
}

// Key returns the composite identity of e.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{SourceID: e.SourceID, Type: e.Type, TargetID: e.TargetID}
}

// Clone returns a copy of e.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}

// ParseSemanticID splits a semantic ID of the shape "Name.TypeAbbr.NNN"
// into its components. It does not validate that TypeAbbr is a known
// abbreviation; callers needing that should follow up with
// NodeTypeFromAbbrev.
func ParseSemanticID(id string) (name, typeAbbr, seq string, err error) {
	parts := strings.Split(id, ".")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("graph: malformed semantic id %q: expected Name.TypeAbbr.NNN", id)
	}
	if parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("graph: malformed semantic id %q: empty component", id)
	}
	return parts[0], parts[1], parts[2], nil
}

// MessageRole is one of the three roles a chat message may carry.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is a single entry in an append-only chat transcript. Operations
// is set only on assistant messages that propose graph mutations, and
// holds the raw Format E operations block text.
type Message struct {
	MessageID  string
	ChatID     string
	Role       MessageRole
	Content    string
	Operations *string
	Timestamp  time.Time
}
