package graph

import (
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/internal/testkeys"
)

var alphabet = []string{"red", "blue", "green", "secret"}

func testGraph() *Graph {
	return &Graph{
		Vertices: []VertexData{
			{ID: "a", Labels: []string{"red"}},
			{ID: "b", Labels: []string{"blue"}},
			{ID: "c"},
		},
		Edges: []EdgeData{
			{From: "a", To: "b", Labels: []string{"secret"}},
			{From: "b", To: "c"},
		},
	}
}

func TestEncode(t *testing.T) {
	_, pk := testkeys.KeyPair()
	enc, err := NewEncoder(pk, alphabet)
	require.NoError(t, err)
	require.Equal(t, []string{"blue", "green", "red", "secret"}, enc.Alphabet())

	bases, err := enc.Encode(testGraph())
	require.NoError(t, err)
	require.Len(t, bases, 5)
	require.Equal(t, 3, bases.Count(Vertex))
	require.Equal(t, 2, bases.Count(Edge))

	red, _ := enc.LabelPrime("red")
	a := bases[0]
	assert.Equal(t, pk.Encoding.VertexBaseIndex(0), a.Index)
	assert.Zero(t, a.Base.Cmp(pk.R[a.Index]))
	assert.Zero(t, a.Exponent.Cmp(new(big.Int).Mul(enc.VertexPrime(0), red)))
	assert.True(t, enc.HasLabel(a.Exponent, "red"))
	assert.False(t, enc.HasLabel(a.Exponent, "blue"))

	ab := bases.WithRole(Edge)[0]
	assert.Equal(t, pk.Encoding.EdgeBaseIndex(0), ab.Index)
	assert.Zero(t, new(big.Int).Mod(ab.Exponent, enc.VertexPrime(0)).Sign())
	assert.Zero(t, new(big.Int).Mod(ab.Exponent, enc.VertexPrime(1)).Sign())
	assert.True(t, enc.HasLabel(ab.Exponent, "secret"))

	c, ok := bases.ByIndex(pk.Encoding.VertexBaseIndex(2))
	require.True(t, ok)
	assert.Zero(t, c.Exponent.Cmp(enc.VertexPrime(2)))
	assert.Empty(t, enc.Labels(c.Exponent))
	assert.Equal(t, []string{"red"}, enc.Labels(a.Exponent))

	rg, err := enc.exponent([]string{"red", "green"}, enc.VertexPrime(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"green", "red"}, enc.Labels(rg))
}

func TestVertexPrimes(t *testing.T) {
	_, pk := testkeys.KeyPair()
	enc, err := NewEncoder(pk, nil)
	require.NoError(t, err)
	low := new(big.Int).Lsh(big.NewInt(1), pk.Encoding.LPrimeVertex-1)
	for i := 0; i < pk.Encoding.MaxVertices; i++ {
		p := enc.VertexPrime(i)
		require.Equal(t, 1, p.Cmp(low))
		require.True(t, p.ProbablyPrime(20))
		if i > 0 {
			require.Equal(t, 1, p.Cmp(enc.VertexPrime(i-1)))
		}
	}
}

func TestLabelOrderIndependent(t *testing.T) {
	_, pk := testkeys.KeyPair()
	enc1, err := NewEncoder(pk, []string{"x", "y"})
	require.NoError(t, err)
	enc2, err := NewEncoder(pk, []string{"y", "x"})
	require.NoError(t, err)
	p1, _ := enc1.LabelPrime("y")
	p2, _ := enc2.LabelPrime("y")
	require.Zero(t, p1.Cmp(p2))
}

func TestEncodeErrors(t *testing.T) {
	_, pk := testkeys.KeyPair()
	enc, err := NewEncoder(pk, alphabet)
	require.NoError(t, err)

	g := testGraph()
	g.Vertices[1].Labels = []string{"purple"}
	_, err = enc.Encode(g)
	require.True(t, errors.Is(err, ErrEncoding))

	g = testGraph()
	g.Edges = append(g.Edges, EdgeData{From: "a", To: "z"})
	_, err = enc.Encode(g)
	require.True(t, errors.Is(err, ErrEncoding))

	g = testGraph()
	g.Vertices = append(g.Vertices, VertexData{ID: "a"})
	_, err = enc.Encode(g)
	require.True(t, errors.Is(err, ErrEncoding))

	g = &Graph{}
	for i := 0; i <= pk.Encoding.MaxVertices; i++ {
		g.Vertices = append(g.Vertices, VertexData{ID: string(rune('a' + i))})
	}
	_, err = enc.Encode(g)
	require.True(t, errors.Is(err, ErrEncoding))

	// 24 + 24 bits of vertex primes plus 14 labels of 16 bits exceed 256 bits.
	g = testGraph()
	for i := 0; i < 14; i++ {
		g.Edges[0].Labels = append(g.Edges[0].Labels, "green")
	}
	_, err = enc.Encode(g)
	require.True(t, errors.Is(err, ErrExponentTooLong))

	_, err = NewEncoder(pk, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"})
	require.True(t, errors.Is(err, ErrAlphabetTooLarge))
	_, err = NewEncoder(pk, []string{"a", "a"})
	require.True(t, errors.Is(err, ErrEncoding))
}

func TestBaseCollection(t *testing.T) {
	bc := BaseCollection{
		{Base: big.NewInt(5), Exponent: big.NewInt(1), Role: Edge, Index: 7},
		{Base: big.NewInt(3), Exponent: big.NewInt(2), Role: BaseZero, Index: 0},
		{Base: big.NewInt(9), Exponent: big.NewInt(2), Role: BaseR, Index: 2},
		{Base: big.NewInt(4), Exponent: big.NewInt(3), Role: Vertex, Index: 2},
	}
	assert.Equal(t, []int{7, 0, 2, 2}, bc.Indices())

	v, ok := bc.ByIndex(2)
	require.True(t, ok)
	assert.Equal(t, Vertex, v.Role)
	_, ok = bc.ByIndex(3)
	assert.False(t, ok)

	for _, b := range bc.Public() {
		assert.Nil(t, b.Exponent)
	}
	assert.NotNil(t, bc[0].Exponent)
	assert.Equal(t, "base_r", BaseR.String())
}
