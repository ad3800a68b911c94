package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSONLD accepts application/ld+json bytes and produces a Graph.
// It validates JSON-LD *shape* only (well-formed node objects with
// "@id"/"@graph"/predicate arrays) — interpreting JSON-LD contexts,
// IRIs, or running SHACL shapes against the result is the external
// RDF/SHACL collaborator's job; this front door exists so
// compiler.Compile has a concrete entry point.
//
// Expected shape (a restricted JSON-LD profile):
//
//	[
//	  {"@id": "node:1", "@graph": "tasks", "flow:next": ["node:2"]},
//	  ...
//	]
func ParseJSONLD(b []byte) (Graph, error) {
	var docs []map[string]any
	if err := json.Unmarshal(b, &docs); err != nil {
		return Graph{}, shapeErr(0, fmt.Sprintf("invalid JSON-LD: %v", err))
	}
	var quads []Quad
	for i, doc := range docs {
		id, ok := doc["@id"].(string)
		if !ok || id == "" {
			return Graph{}, shapeErr(i, "node object missing \"@id\"")
		}
		g, _ := doc["@graph"].(string)
		if g == "" {
			g = "default"
		}
		for pred, val := range doc {
			if pred == "@id" || pred == "@graph" {
				continue
			}
			objs, err := jsonLDObjects(pred, val)
			if err != nil {
				return Graph{}, shapeErr(i, err.Error())
			}
			for _, o := range objs {
				quads = append(quads, Quad{Subject: id, Predicate: pred, Object: o, Graph: g})
			}
		}
	}
	return New(quads), nil
}

func jsonLDObjects(pred string, val any) ([]string, error) {
	switch v := val.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("predicate %q: non-string array element", pred)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("predicate %q: unsupported value shape", pred)
	}
}

// ParseTurtle accepts a restricted Turtle/TriG subset: one triple per
// line, "<subject> <predicate> <object> ." with an optional leading
// "GRAPH <name> {" / "}" block for named-graph scoping (TriG). Prefix
// directives and terms that are neither IRIs nor blank nodes (literals
// included) are rejected with ShapeViolation at this layer; full
// Turtle grammar belongs to the external RDF
// collaborator.
func ParseTurtle(b []byte) (Graph, error) {
	lines := strings.Split(string(b), "\n")
	currentGraph := "default"
	var quads []Quad
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "@prefix") {
			return Graph{}, shapeErr(i, "turtle: @prefix directives unsupported")
		}
		if strings.HasPrefix(line, "GRAPH ") && strings.HasSuffix(line, "{") {
			name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, "GRAPH "), "{"))
			currentGraph = strings.Trim(name, "<>")
			continue
		}
		if line == "}" {
			currentGraph = "default"
			continue
		}
		q, err := parseTurtleTriple(line, currentGraph)
		if err != nil {
			return Graph{}, shapeErr(i, err.Error())
		}
		quads = append(quads, q)
	}
	return New(quads), nil
}

func parseTurtleTriple(line, g string) (Quad, error) {
	line = strings.TrimSuffix(strings.TrimSpace(line), ".")
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Quad{}, fmt.Errorf("turtle: expected exactly 3 terms, got %d", len(fields))
	}
	unwrap := func(s string) (string, error) {
		if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
			return strings.Trim(s, "<>"), nil
		}
		if strings.HasPrefix(s, "_:") {
			return s, nil
		}
		return "", fmt.Errorf("turtle: term %q is not an IRI or blank node", s)
	}
	s, err := unwrap(fields[0])
	if err != nil {
		return Quad{}, err
	}
	p, err := unwrap(fields[1])
	if err != nil {
		return Quad{}, err
	}
	o, err := unwrap(fields[2])
	if err != nil {
		return Quad{}, err
	}
	return Quad{Subject: s, Predicate: p, Object: o, Graph: g}, nil
}
