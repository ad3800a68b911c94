package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentAddressingStable(t *testing.T) {
	q := []Quad{
		{Subject: "n1", Predicate: "flow:next", Object: "n2", Graph: "g1"},
		{Subject: "n2", Predicate: "pattern", Object: "sequence", Graph: "g1"},
	}
	g1 := New(q)
	g2 := New(append([]Quad(nil), q...))
	require.Equal(t, g1.Hash(), g2.Hash())
}

func TestApplyIsAppendOnlyAndRehashes(t *testing.T) {
	g := New([]Quad{{Subject: "n1", Predicate: "pattern", Object: "sequence", Graph: "g1"}})
	h0 := g.Hash()
	g2 := g.Apply(Delta{Adds: []Quad{{Subject: "n2", Predicate: "pattern", Object: "sequence", Graph: "g1"}}})
	require.NotEqual(t, h0, g2.Hash())
	require.Equal(t, 2, g2.Len())

	g3 := g2.Apply(Delta{Removes: []Quad{{Subject: "n1", Predicate: "pattern", Object: "sequence", Graph: "g1"}}})
	require.Equal(t, 1, g3.Len())
}

func TestShardLawDisjointScopes(t *testing.T) {
	base := New([]Quad{{Subject: "n1", Predicate: "pattern", Object: "sequence", Graph: "a"}})
	delta := Delta{Adds: []Quad{{Subject: "n2", Predicate: "pattern", Object: "sequence", Graph: "b"}}}

	combined := base.Apply(delta)
	separatelyMerged := New(append(append([]Quad(nil), base.Quads()...), delta.Adds...))
	require.Equal(t, separatelyMerged.Hash(), combined.Hash())
}

func TestBlankNodeNormalization(t *testing.T) {
	g1 := New([]Quad{{Subject: "_:x", Predicate: "pattern", Object: "sequence", Graph: "g"}})
	g2 := New([]Quad{{Subject: "_:zzz", Predicate: "pattern", Object: "sequence", Graph: "g"}})
	require.Equal(t, g1.Hash(), g2.Hash())
}

func TestParseJSONLD(t *testing.T) {
	doc := `[{"@id":"node:1","@graph":"tasks","flow:next":["node:2","node:3"]}]`
	g, err := ParseJSONLD([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())
}

func TestParseJSONLDMissingID(t *testing.T) {
	_, err := ParseJSONLD([]byte(`[{"flow:next": "node:2"}]`))
	require.Error(t, err)
	var ce *CodedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrShapeViolation, ce.Code)
}

func TestParseTurtle(t *testing.T) {
	src := "GRAPH <tasks> {\n<node:1> <flow:next> <node:2> .\n}\n"
	g, err := ParseTurtle([]byte(src))
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())
	require.Equal(t, "tasks", g.Quads()[0].Graph)
}

func TestParseTurtleRejectsPrefix(t *testing.T) {
	_, err := ParseTurtle([]byte("@prefix ex: <http://example.com/> .\n"))
	require.Error(t, err)
}
