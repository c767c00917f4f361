package formate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/flowtwo/graphforge/pkg/graph"
)

var (
	baseSnapshotRe = regexp.MustCompile(`(?i)^<base_snapshot>\s*(.*?)\s*</base_snapshot>$`)
	viewContextRe  = regexp.MustCompile(`(?i)^<view_context>\s*(.*?)\s*</view_context>$`)
	nodeBracketRe  = regexp.MustCompile(`^(.*?)\s*\[(.*)\]\s*$`)
	edgeLineRe     = regexp.MustCompile(`^(\S+)\s+-(\w+)->\s+(\S+)$`)

	sectionNodes = "## Nodes"
	sectionEdges = "## Edges"
)

type section int

const (
	sectionNone section = iota
	sectionNodesKind
	sectionEdgesKind
)

// ParseDiff parses a Format E operations block into a structured Diff. The
// input may optionally be wrapped in <operations>…</operations> tags
// (case-insensitive); if present, the wrapper is stripped before parsing.
//
// ParseDiff fails on syntactically invalid lines, an unknown type
// abbreviation in the semantic ID of an add or update node line, an unknown
// edge arrow, or an unterminated JSON attribute value. Remove-node lines
// take their semantic ID as given; its type abbreviation is not checked.
func ParseDiff(text string) (*Diff, error) {
	body := stripOperationsWrapper(text)

	diff := &Diff{}
	cur := sectionNone

	lines := strings.Split(body, "\n")
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.EqualFold(line, sectionNodes):
			cur = sectionNodesKind
			continue
		case strings.EqualFold(line, sectionEdges):
			cur = sectionEdgesKind
			continue
		case strings.HasPrefix(line, "##"):
			return nil, newParseError(lineNo, line, "unknown section header")
		case strings.HasPrefix(line, "#"):
			continue
		}

		if m := baseSnapshotRe.FindStringSubmatch(line); m != nil {
			bs, err := parseBaseSnapshot(m[1])
			if err != nil {
				return nil, newParseError(lineNo, line, err.Error())
			}
			diff.BaseSnapshot = bs
			continue
		}
		if m := viewContextRe.FindStringSubmatch(line); m != nil {
			diff.ViewContext = m[1]
			continue
		}
		if strings.Contains(line, "<") && strings.Contains(line, ">") && !isOpLine(line) {
			return nil, newParseError(lineNo, line, "unterminated or malformed tag")
		}

		op := line[0]
		if op != '+' && op != '-' && op != '~' {
			return nil, newParseError(lineNo, line, "line does not start with +, -, or ~")
		}
		rest := strings.TrimSpace(line[1:])

		switch cur {
		case sectionNodesKind:
			nodeOp, err := parseNodeLine(op, rest)
			if err != nil {
				return nil, newParseError(lineNo, line, err.Error())
			}
			diff.NodeOps = append(diff.NodeOps, *nodeOp)
		case sectionEdgesKind:
			edgeOp, err := parseEdgeLine(op, rest)
			if err != nil {
				return nil, newParseError(lineNo, line, err.Error())
			}
			diff.EdgeOps = append(diff.EdgeOps, *edgeOp)
		default:
			return nil, newParseError(lineNo, line, "operation line outside of ## Nodes or ## Edges section")
		}
	}

	return diff, nil
}

func isOpLine(line string) bool {
	return len(line) > 0 && (line[0] == '+' || line[0] == '-' || line[0] == '~')
}

func stripOperationsWrapper(text string) string {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)
	if strings.HasPrefix(lower, "<operations>") {
		t = t[len("<operations>"):]
	}
	lower = strings.ToLower(strings.TrimSpace(t))
	if strings.HasSuffix(lower, "</operations>") {
		idx := strings.LastIndex(strings.ToLower(t), "</operations>")
		t = t[:idx]
	}
	return strings.TrimSpace(t)
}

func parseBaseSnapshot(content string) (*BaseSnapshot, error) {
	parts := strings.SplitN(content, "@v", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed base_snapshot %q: expected SYS_ID@vN", content)
	}
	v, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed base_snapshot version %q: %w", parts[1], err)
	}
	return &BaseSnapshot{SystemID: parts[0], Version: v}, nil
}

func parseNodeLine(op byte, rest string) (*NodeOp, error) {
	if op == '-' {
		if rest == "" {
			return nil, fmt.Errorf("remove-node line missing semantic id")
		}
		return &NodeOp{Kind: OpRemoveNode, SemanticID: rest}, nil
	}

	kind := OpAddNode
	if op == '~' {
		kind = OpUpdateNode
	}

	semanticID, remainder, found := strings.Cut(rest, "|")
	semanticID = strings.TrimSpace(semanticID)
	if semanticID == "" {
		return nil, fmt.Errorf("node line missing semantic id")
	}
	if _, abbrev, _, err := graph.ParseSemanticID(semanticID); err != nil {
		return nil, err
	} else if _, err := graph.NodeTypeFromAbbrev(abbrev); err != nil {
		return nil, err
	}

	var (
		description string
		attrs       map[string]any
	)
	if found {
		var err error
		description, attrs, err = splitDescriptionAndAttrs(remainder)
		if err != nil {
			return nil, err
		}
	}

	return &NodeOp{Kind: kind, SemanticID: semanticID, Description: description, Attributes: attrs}, nil
}

func splitDescriptionAndAttrs(remainder string) (string, map[string]any, error) {
	remainder = strings.TrimSpace(remainder)
	m := nodeBracketRe.FindStringSubmatch(remainder)
	if m == nil {
		return remainder, nil, nil
	}
	description := strings.TrimSpace(m[1])
	attrs, err := parseAttributes(m[2])
	if err != nil {
		return "", nil, err
	}
	return description, attrs, nil
}

// parseAttributes splits a bracket's contents on top-level commas (commas
// nested inside a JSON value or quoted string do not split) and parses each
// "key:value" pair.
func parseAttributes(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return map[string]any{}, nil
	}

	tokens, err := splitTopLevel(content)
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]any, len(tokens))
	for _, tok := range tokens {
		key, val, found := strings.Cut(tok, ":")
		if !found {
			return nil, fmt.Errorf("malformed attribute %q: expected key:value", tok)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if key == "" {
			return nil, fmt.Errorf("malformed attribute %q: empty key", tok)
		}
		attrs[key] = decodeAttrValue(val)
	}
	return attrs, nil
}

// splitTopLevel splits s on commas that are not nested inside (), [], {},
// or a quoted string. It returns an error if brackets or quotes are left
// unterminated at the end of the string.
func splitTopLevel(s string) ([]string, error) {
	var tokens []string
	var depth int
	var inQuote bool
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inQuote = !inQuote
		case inQuote:
			// inside a quoted string, ignore structural characters
		case c == '[' || c == '{':
			depth++
		case c == ']' || c == '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced brackets in attribute value near %q", s[i:])
			}
		case c == ',' && depth == 0:
			tokens = append(tokens, s[start:i])
			start = i + 1
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quoted value in %q", s)
	}
	if depth != 0 {
		return nil, fmt.Errorf("unterminated JSON value in %q", s)
	}
	tokens = append(tokens, s[start:])
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	return tokens, nil
}

// decodeAttrValue parses val as JSON when it looks like a JSON literal
// (object, array, string, number, bool, or null); otherwise it is stored
// as a raw string.
func decodeAttrValue(val string) any {
	if val == "" {
		return ""
	}
	switch val[0] {
	case '{', '[', '"':
		var out any
		if err := json.Unmarshal([]byte(val), &out); err == nil {
			return out
		}
		return val
	}
	if val == "true" || val == "false" || val == "null" {
		var out any
		if err := json.Unmarshal([]byte(val), &out); err == nil {
			return out
		}
	}
	if n, err := strconv.ParseFloat(val, 64); err == nil {
		return n
	}
	return val
}

func parseEdgeLine(op byte, rest string) (*EdgeOp, error) {
	if op == '~' {
		return nil, fmt.Errorf("edge lines do not support ~ (update); only + and -")
	}
	m := edgeLineRe.FindStringSubmatch(rest)
	if m == nil {
		return nil, fmt.Errorf("malformed edge line %q: expected Source -arrow-> Target", rest)
	}
	et, err := graph.EdgeTypeFromArrow(m[2])
	if err != nil {
		return nil, err
	}
	kind := OpAddEdge
	if op == '-' {
		kind = OpRemoveEdge
	}
	return &EdgeOp{Kind: kind, SourceID: m[1], TargetID: m[3], Type: et}, nil
}
