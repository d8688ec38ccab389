package graph

import (
	"fmt"
	"sort"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/internal/common"
	"github.com/privacybydesign/graphsig/keys"
)

// Graph is a labelled, undirected graph.
type Graph struct {
	Vertices []VertexData `json:"vertices"`
	Edges    []EdgeData   `json:"edges"`
}

type VertexData struct {
	ID     string   `json:"id"`
	Labels []string `json:"labels,omitempty"`
}

type EdgeData struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Labels []string `json:"labels,omitempty"`
}

var (
	ErrEncoding         = errors.New("graph cannot be encoded")
	ErrExponentTooLong  = errors.New("encoded exponent exceeds message length")
	ErrAlphabetTooLarge = errors.New("label alphabet does not fit the encoding")
)

// Encoder maps vertices and labels to primes. Vertex i of a graph gets the i-th prime above
// 2^(LPrimeVertex-1), label k of the alphabet the k-th prime above 2^(LPrimeLabel-1).
type Encoder struct {
	pk           *keys.PublicKey
	vertexPrimes []*big.Int
	labelPrimes  map[string]*big.Int
	alphabet     []string
}

// NewEncoder prepares an encoder for the given public key and label alphabet. The alphabet is
// sorted so that label primes do not depend on the order in which labels were listed.
func NewEncoder(pk *keys.PublicKey, alphabet []string) (*Encoder, error) {
	enc := pk.Encoding
	if len(alphabet) > enc.MaxLabels {
		return nil, errors.WrapPrefix(ErrAlphabetTooLarge,
			fmt.Sprintf("%d labels, at most %d", len(alphabet), enc.MaxLabels), 0)
	}

	sorted := append([]string(nil), alphabet...)
	sort.Strings(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, errors.WrapPrefix(ErrEncoding, "duplicate label "+sorted[i], 0)
		}
	}

	vertexPrimes := common.ConsecutivePrimes(enc.LPrimeVertex, enc.MaxVertices)
	if vertexPrimes[len(vertexPrimes)-1].BitLen() > int(enc.LPrimeVertex) {
		return nil, errors.WrapPrefix(ErrEncoding, "vertex prime range exhausted", 0)
	}

	labelPrimes := make(map[string]*big.Int, len(sorted))
	if len(sorted) > 0 {
		primes := common.ConsecutivePrimes(enc.LPrimeLabel, len(sorted))
		if primes[len(primes)-1].BitLen() > int(enc.LPrimeLabel) {
			return nil, errors.WrapPrefix(ErrAlphabetTooLarge, "label prime range exhausted", 0)
		}
		for i, l := range sorted {
			labelPrimes[l] = primes[i]
		}
	}

	return &Encoder{
		pk:           pk,
		vertexPrimes: vertexPrimes,
		labelPrimes:  labelPrimes,
		alphabet:     sorted,
	}, nil
}

// Alphabet returns the sorted label alphabet.
func (e *Encoder) Alphabet() []string {
	return append([]string(nil), e.alphabet...)
}

// VertexPrime returns the prime identifying the i-th vertex.
func (e *Encoder) VertexPrime(i int) *big.Int {
	return e.vertexPrimes[i]
}

// LabelPrime returns the prime representing a label.
func (e *Encoder) LabelPrime(label string) (*big.Int, bool) {
	p, ok := e.labelPrimes[label]
	return p, ok
}

// Encode turns g into a base collection holding one Vertex representation per vertex and one
// Edge representation per edge.
func (e *Encoder) Encode(g *Graph) (BaseCollection, error) {
	enc := e.pk.Encoding
	if len(g.Vertices) > enc.MaxVertices {
		return nil, errors.WrapPrefix(ErrEncoding,
			fmt.Sprintf("%d vertices, at most %d", len(g.Vertices), enc.MaxVertices), 0)
	}
	if len(g.Edges) > enc.MaxEdges {
		return nil, errors.WrapPrefix(ErrEncoding,
			fmt.Sprintf("%d edges, at most %d", len(g.Edges), enc.MaxEdges), 0)
	}

	positions := make(map[string]int, len(g.Vertices))
	bases := make(BaseCollection, 0, len(g.Vertices)+len(g.Edges))
	for i, v := range g.Vertices {
		if _, dup := positions[v.ID]; dup {
			return nil, errors.WrapPrefix(ErrEncoding, "duplicate vertex "+v.ID, 0)
		}
		positions[v.ID] = i

		exp, err := e.exponent(v.Labels, e.VertexPrime(i))
		if err != nil {
			return nil, errors.WrapPrefix(err, "vertex "+v.ID, 0)
		}
		idx := enc.VertexBaseIndex(i)
		bases = append(bases, &BaseRepresentation{Base: e.pk.R[idx], Exponent: exp, Role: Vertex, Index: idx})
	}

	for j, edge := range g.Edges {
		from, ok := positions[edge.From]
		if !ok {
			return nil, errors.WrapPrefix(ErrEncoding, "edge from unknown vertex "+edge.From, 0)
		}
		to, ok := positions[edge.To]
		if !ok {
			return nil, errors.WrapPrefix(ErrEncoding, "edge to unknown vertex "+edge.To, 0)
		}

		exp, err := e.exponent(edge.Labels, e.VertexPrime(from), e.VertexPrime(to))
		if err != nil {
			return nil, errors.WrapPrefix(err, fmt.Sprintf("edge %s-%s", edge.From, edge.To), 0)
		}
		idx := enc.EdgeBaseIndex(j)
		bases = append(bases, &BaseRepresentation{Base: e.pk.R[idx], Exponent: exp, Role: Edge, Index: idx})
	}

	return bases, nil
}

func (e *Encoder) exponent(labels []string, primes ...*big.Int) (*big.Int, error) {
	r := big.NewInt(1)
	for _, p := range primes {
		r.Mul(r, p)
	}
	for _, l := range labels {
		p, ok := e.LabelPrime(l)
		if !ok {
			return nil, errors.WrapPrefix(ErrEncoding, "unknown label "+l, 0)
		}
		r.Mul(r, p)
	}
	if uint(r.BitLen()) > e.pk.Params.Lm {
		return nil, errors.WrapPrefix(ErrExponentTooLong, fmt.Sprintf("%d bits", r.BitLen()), 0)
	}
	return r, nil
}

// HasLabel reports whether an encoded exponent carries the given label.
func (e *Encoder) HasLabel(exponent *big.Int, label string) bool {
	p, ok := e.LabelPrime(label)
	if !ok {
		return false
	}
	return new(big.Int).Mod(exponent, p).Sign() == 0
}

// Labels returns the labels an encoded exponent carries, in alphabet order.
func (e *Encoder) Labels(exponent *big.Int) []string {
	var labels []string
	for _, l := range e.Alphabet() {
		if e.HasLabel(exponent, l) {
			labels = append(labels, l)
		}
	}
	return labels
}
