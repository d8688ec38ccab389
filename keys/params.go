package keys

import (
	"sort"

	"github.com/go-errors/errors"
)

type (
	// SystemParameters holds the bit lengths used for key generation, signing and proving.
	SystemParameters struct {
		BaseParameters
		DerivedParameters
	}

	// BaseParameters holds the base system parameters
	BaseParameters struct {
		LePrime uint
		Lh      uint
		Lm      uint
		Ln      uint
		Lstatzk uint
	}

	// DerivedParameters holds system parameters that can be drived from base
	// systemparameters (BaseParameters)
	DerivedParameters struct {
		Le            uint
		LeCommit      uint
		LmCommit      uint
		LRA           uint
		LsCommit      uint
		Lv            uint
		LvCommit      uint
		LvPrime       uint
		LvPrimeCommit uint

		// Lr is the length of the randomness of a vertex commitment, LrCommit that of its
		// witness randomness.
		Lr       uint
		LrCommit uint
		// LpairCommit is the length of the witness randomness for the blinding difference
		// in a coprimality proof.
		LpairCommit uint
	}

	// EncodingParameters fixes how a graph is laid out over the bases of a public key.
	EncodingParameters struct {
		MaxVertices  int  `xml:"maxVertices,attr" json:"maxVertices" mapstructure:"max_vertices"`
		MaxEdges     int  `xml:"maxEdges,attr" json:"maxEdges" mapstructure:"max_edges"`
		LPrimeVertex uint `xml:"vertexPrimeLength,attr" json:"vertexPrimeLength" mapstructure:"vertex_prime_length"`
		LPrimeLabel  uint `xml:"labelPrimeLength,attr" json:"labelPrimeLength" mapstructure:"label_prime_length"`
		MaxLabels    int  `xml:"maxLabels,attr" json:"maxLabels" mapstructure:"max_labels"`
	}
)

// defaultBaseParameters holds per keylength the base parameters.
var defaultBaseParameters = map[int]BaseParameters{
	1024: {
		LePrime: 120,
		Lh:      256,
		Lm:      256,
		Ln:      1024,
		Lstatzk: 80,
	},
	2048: {
		LePrime: 120,
		Lh:      256,
		Lm:      256,
		Ln:      2048,
		Lstatzk: 128,
	},
	4096: {
		LePrime: 120,
		Lh:      256,
		Lm:      512,
		Ln:      4096,
		Lstatzk: 128,
	},
}

// MakeDerivedParameters computes the derived system parameters
func MakeDerivedParameters(base BaseParameters) DerivedParameters {
	Lv := base.Ln + 2*base.Lstatzk + base.Lh + base.Lm + 4
	return DerivedParameters{
		Le:            base.Lstatzk + base.Lh + base.Lm + 5,
		LeCommit:      base.LePrime + base.Lstatzk + base.Lh,
		LmCommit:      base.Lm + base.Lstatzk + base.Lh,
		LRA:           base.Ln + base.Lstatzk,
		LsCommit:      base.Lm + base.Lstatzk + base.Lh + 1,
		Lv:            Lv,
		LvCommit:      Lv + base.Lstatzk + base.Lh,
		LvPrime:       base.Ln + base.Lstatzk,
		LvPrimeCommit: base.Ln + 2*base.Lstatzk + base.Lh,
		Lr:            base.Ln,
		LrCommit:      base.Ln + base.Lstatzk + base.Lh,
		LpairCommit:   base.Ln + base.Lm + base.Lstatzk + base.Lh + 1,
	}
}

// DefaultSystemParameters holds per keylength the default parameters.
var DefaultSystemParameters = map[int]*SystemParameters{
	1024: {defaultBaseParameters[1024], MakeDerivedParameters(defaultBaseParameters[1024])},
	2048: {defaultBaseParameters[2048], MakeDerivedParameters(defaultBaseParameters[2048])},
	4096: {defaultBaseParameters[4096], MakeDerivedParameters(defaultBaseParameters[4096])},
}

// getAvailableKeyLengths returns the keylengths for the provided map of system
// parameters.
func getAvailableKeyLengths(sysParamsMap map[int]*SystemParameters) []int {
	lengths := make([]int, 0, len(sysParamsMap))
	for k := range sysParamsMap {
		lengths = append(lengths, k)
	}
	sort.Ints(lengths)
	return lengths
}

// DefaultKeyLengths is a slice of integers holding the keylengths for which
// system parameters are available.
var DefaultKeyLengths = getAvailableKeyLengths(DefaultSystemParameters)

// DefaultEncodingParameters is the graph layout used when none is configured.
var DefaultEncodingParameters = EncodingParameters{
	MaxVertices:  16,
	MaxEdges:     32,
	LPrimeVertex: 24,
	LPrimeLabel:  16,
	MaxLabels:    64,
}

var ErrInvalidEncoding = errors.New("invalid graph encoding parameters")

// NumBases returns the number of R bases a public key needs for this encoding: one for the
// master secret, one per vertex and one per edge.
func (e EncodingParameters) NumBases() int {
	return 1 + e.MaxVertices + e.MaxEdges
}

// VertexBaseIndex returns the index into R of the base carrying vertex i.
func (e EncodingParameters) VertexBaseIndex(i int) int {
	return 1 + i
}

// EdgeBaseIndex returns the index into R of the base carrying edge j.
func (e EncodingParameters) EdgeBaseIndex(j int) int {
	return 1 + e.MaxVertices + j
}

// Validate checks the encoding against the system parameters. Label primes must be shorter than
// vertex primes and an edge exponent with one label must fit in Lm bits.
func (e EncodingParameters) Validate(params *SystemParameters) error {
	switch {
	case e.MaxVertices < 1 || e.MaxEdges < 0 || e.MaxLabels < 0:
		return errors.WrapPrefix(ErrInvalidEncoding, "negative or zero capacity", 0)
	case e.LPrimeLabel < 3 || e.LPrimeVertex <= e.LPrimeLabel:
		return errors.WrapPrefix(ErrInvalidEncoding, "vertex primes must be longer than label primes", 0)
	case 2*e.LPrimeVertex+e.LPrimeLabel > params.Lm:
		return errors.WrapPrefix(ErrInvalidEncoding, "an edge with one label does not fit in Lm bits", 0)
	}
	return nil
}
