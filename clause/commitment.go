package clause

import (
	"strconv"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/internal/common"
	"github.com/privacybydesign/graphsig/keys"
	"github.com/privacybydesign/graphsig/registry"
)

// Roles of the commitment clause.
const (
	RoleC      = "C"
	RoleTildeC = "tilde_C"
	RoleTildeR = "tilde_r"
	RoleHatR   = "hat_r"
)

// Mode tells where a commitment takes the witness randomness of its messages from.
type Mode int

const (
	// Standalone commitments sample witness randomness for every message.
	Standalone Mode = iota
	// Equality commitments reuse the witness randomness and responses of the possession clause
	// for the same base index, which makes both responses equal by construction.
	Equality
)

func (m Mode) String() string {
	if m == Equality {
		return "equality"
	}
	return "standalone"
}

// Strategy parameterizes a commitment C = S^r * prod base_i^m_i.
type Strategy struct {
	Mode Mode
	// Singleton commitments cover exactly one base of role graph.BaseR. Their registry values
	// are indexed by the base index they are linked to.
	Singleton bool

	RandomnessBits       uint // length of r
	RandomnessCommitBits uint // length of the witness randomness for r
	MessageCommitBits    uint // length of the witness randomness for standalone messages
}

// VertexCommitment is the strategy for committing to one vertex exponent that the possession
// clause proves as well.
func VertexCommitment(params *keys.SystemParameters) Strategy {
	return Strategy{
		Mode:                 Equality,
		Singleton:            true,
		RandomnessBits:       params.Lr,
		RandomnessCommitBits: params.LrCommit,
		MessageCommitBits:    params.LmCommit,
	}
}

// IssuingCommitment is the strategy for the commitment U = S^v' * R_0^m_0 a recipient sends
// during issuance.
func IssuingCommitment(params *keys.SystemParameters) Strategy {
	return Strategy{
		Mode:                 Standalone,
		RandomnessBits:       params.LvPrime,
		RandomnessCommitBits: params.LvPrimeCommit,
		MessageCommitBits:    params.LmCommit,
	}
}

// commitmentKeys names the registry values of one commitment in one namespace.
type commitmentKeys struct {
	ns        string
	mode      Mode
	singleton bool
	index     int
}

func (ck commitmentKeys) own(role string) registry.Key {
	if ck.singleton {
		return registry.NewIndexedKey(ck.ns, registry.KindCommitment, role, ck.index)
	}
	return registry.NewKey(ck.ns, registry.KindCommitment, role)
}

// message returns the key of the tilde or hat value for the message of base index idx.
func (ck commitmentKeys) message(role string, idx int) registry.Key {
	if ck.mode == Equality {
		return registry.NewIndexedKey(ck.ns, registry.KindPossession, role, idx)
	}
	return registry.NewIndexedKey(ck.ns, registry.KindCommitment, role, idx)
}

// Commitment proves knowledge of an opening of C = S^r * prod base_i^m_i.
type Commitment struct {
	phase
	s        *Session
	strategy Strategy
	keys     commitmentKeys

	bases graph.BaseCollection
	r     *big.Int
	c     *big.Int
}

// NewCommitment creates a commitment clause over bases. If r is nil, fresh randomness is drawn
// in Precompute.
func NewCommitment(s *Session, strategy Strategy, bases graph.BaseCollection, r *big.Int) *Commitment {
	cm := &Commitment{
		phase:    phase{kind: registry.KindCommitment},
		s:        s,
		strategy: strategy,
		bases:    bases,
		r:        r,
	}
	cm.keys = commitmentKeys{ns: s.Namespace, mode: strategy.Mode, singleton: strategy.Singleton}
	if strategy.Singleton && len(bases) > 0 {
		cm.keys.index = bases[0].Index
	}
	return cm
}

func validateBases(strategy Strategy, bases graph.BaseCollection) error {
	if strategy.Singleton {
		if len(bases) != 1 || bases[0].Role != graph.BaseR {
			return errors.WrapPrefix(ErrPrecondition,
				"singleton commitment needs exactly one base_r base, got "+strconv.Itoa(len(bases))+" bases", 0)
		}
		return nil
	}
	if len(bases) == 0 {
		return errors.WrapPrefix(ErrPrecondition, "commitment without bases", 0)
	}
	seen := map[int]bool{}
	for _, b := range bases {
		if seen[b.Index] {
			return errors.WrapPrefix(ErrPrecondition, "base index "+strconv.Itoa(b.Index)+" occurs twice", 0)
		}
		seen[b.Index] = true
	}
	return nil
}

// Index returns the base index a singleton commitment is linked to.
func (cm *Commitment) Index() int {
	return cm.keys.index
}

// Value returns the public commitment. It is nil before Precompute.
func (cm *Commitment) Value() *big.Int {
	return cm.c
}

// Randomness returns r.
func (cm *Commitment) Randomness() *big.Int {
	return cm.r
}

func (cm *Commitment) Precompute() error {
	if err := cm.advance(Precomputed, Created); err != nil {
		return err
	}
	if err := validateBases(cm.strategy, cm.bases); err != nil {
		return cm.fail(err)
	}
	for _, b := range cm.bases {
		if b.Exponent == nil {
			return cm.fail(errors.WrapPrefix(ErrPrecondition, "exponent missing", 0))
		}
	}

	if cm.r == nil {
		r, err := common.RandomBigInt(cm.strategy.RandomnessBits)
		if err != nil {
			return cm.fail(err)
		}
		cm.r = r
	}

	c, err := cm.s.multiExp(append([]*big.Int{cm.s.PK.S}, cm.bases.Bases()...),
		append([]*big.Int{cm.r}, cm.bases.Exponents()...))
	if err != nil {
		return cm.fail(err)
	}
	cm.c = c
	if err = cm.s.put(cm.keys.own(RoleC), c); err != nil {
		return cm.fail(err)
	}
	return nil
}

func (cm *Commitment) Public() []Response {
	return []Response{{Key: cm.keys.own(RoleC), Value: cm.c}}
}

func (cm *Commitment) Commit() (*big.Int, error) {
	if err := cm.beginCommit(cm.Precompute); err != nil {
		return nil, err
	}

	tildeR, err := cm.s.witness(cm.keys.own(RoleTildeR), cm.strategy.RandomnessCommitBits)
	if err != nil {
		return nil, cm.fail(err)
	}
	bases := []*big.Int{cm.s.PK.S}
	exps := []*big.Int{tildeR}
	for _, b := range cm.bases {
		var tildeM *big.Int
		if cm.strategy.Mode == Equality {
			tildeM, err = cm.s.get(cm.keys.message(RoleTildeM, b.Index))
		} else {
			tildeM, err = cm.s.witness(cm.keys.message(RoleTildeM, b.Index), cm.strategy.MessageCommitBits)
		}
		if err != nil {
			return nil, cm.fail(err)
		}
		bases = append(bases, b.Base)
		exps = append(exps, tildeM)
	}

	tildeC, err := cm.s.multiExp(bases, exps)
	if err != nil {
		return nil, cm.fail(err)
	}
	if err = cm.s.put(cm.keys.own(RoleTildeC), tildeC); err != nil {
		return nil, cm.fail(err)
	}
	return tildeC, nil
}

// Respond computes hat_r and, in standalone mode, the message responses. In equality mode the
// message responses are those of the possession clause, which must have responded first.
func (cm *Commitment) Respond(c *big.Int) ([]Response, error) {
	if err := cm.beginRespond(c); err != nil {
		return nil, err
	}

	var responses []Response
	respond := func(tildeKey, hatKey registry.Key, secret *big.Int) error {
		tilde, err := cm.s.get(tildeKey)
		if err != nil {
			return err
		}
		hat := response(tilde, c, secret)
		if err = cm.s.put(hatKey, hat); err != nil {
			return err
		}
		responses = append(responses, Response{Key: hatKey, Value: hat})
		return nil
	}

	if err := respond(cm.keys.own(RoleTildeR), cm.keys.own(RoleHatR), cm.r); err != nil {
		return nil, cm.fail(err)
	}
	if cm.strategy.Mode == Standalone {
		for _, b := range cm.bases {
			if err := respond(cm.keys.message(RoleTildeM, b.Index), cm.keys.message(RoleHatM, b.Index), b.Exponent); err != nil {
				return nil, cm.fail(err)
			}
		}
	}

	if err := cm.advance(Responded, Challenged); err != nil {
		return nil, err
	}
	return responses, nil
}

func (cm *Commitment) Verify() bool {
	if cm.state == Verified {
		return true
	}
	if cm.state != Responded {
		return false
	}
	recomputed, err := reconstructCommitment(cm.s, cm.keys, cm.challenge, cm.c, cm.bases)
	if err != nil {
		return cm.finish(false)
	}
	tildeC, err := cm.s.get(cm.keys.own(RoleTildeC))
	if err != nil {
		return cm.finish(false)
	}
	return cm.finish(recomputed.Cmp(tildeC) == 0)
}

// reconstructCommitment computes C^-c * S^hat_r * prod base_i^hat_m_i from the responses stored
// under ck.
func reconstructCommitment(s *Session, ck commitmentKeys, c, value *big.Int, bases graph.BaseCollection) (*big.Int, error) {
	hatR, err := s.get(ck.own(RoleHatR))
	if err != nil {
		return nil, err
	}
	allBases := []*big.Int{value, s.PK.S}
	exps := []*big.Int{new(big.Int).Neg(c), hatR}
	for _, b := range bases {
		hatM, err := s.get(ck.message(RoleHatM, b.Index))
		if err != nil {
			return nil, err
		}
		allBases = append(allBases, b.Base)
		exps = append(exps, hatM)
	}
	return s.multiExp(allBases, exps)
}

// CommitmentChecker verifies a commitment proof received under namespace source. Its bases
// need no exponents.
type CommitmentChecker struct {
	s        *Session
	strategy Strategy
	source   commitmentKeys
	bases    graph.BaseCollection
}

// NewCommitmentChecker creates a checker for a commitment received under namespace source.
func NewCommitmentChecker(s *Session, strategy Strategy, source string, bases graph.BaseCollection) *CommitmentChecker {
	cc := &CommitmentChecker{
		s:        s,
		strategy: strategy,
		source:   commitmentKeys{ns: source, mode: strategy.Mode, singleton: strategy.Singleton},
		bases:    bases,
	}
	if strategy.Singleton && len(bases) > 0 {
		cc.source.index = bases[0].Index
	}
	return cc
}

func (cc *CommitmentChecker) Kind() string {
	return registry.KindCommitment
}

// Reconstruct checks the response lengths and recomputes tilde_C, storing it under the session
// namespace.
func (cc *CommitmentChecker) Reconstruct(c *big.Int) (*big.Int, error) {
	if err := validateBases(cc.strategy, cc.bases); err != nil {
		return nil, err
	}
	s := cc.s
	value, err := s.get(cc.source.own(RoleC))
	if err != nil {
		return nil, err
	}

	hatRKey := cc.source.own(RoleHatR)
	hatR, err := s.get(hatRKey)
	if err != nil {
		return nil, err
	}
	if err = checkLength(hatRKey, hatR, cc.strategy.RandomnessCommitBits); err != nil {
		return nil, err
	}
	// Equality mode message responses are checked along with the possession proof.
	if cc.strategy.Mode == Standalone {
		for _, b := range cc.bases {
			k := cc.source.message(RoleHatM, b.Index)
			hatM, err := s.get(k)
			if err != nil {
				return nil, err
			}
			if err = checkLength(k, hatM, cc.strategy.MessageCommitBits); err != nil {
				return nil, err
			}
		}
	}

	tildeC, err := reconstructCommitment(s, cc.source, c, value, cc.bases)
	if err != nil {
		return nil, err
	}
	own := cc.source
	own.ns = s.Namespace
	if err = s.put(own.own(RoleTildeC), tildeC); err != nil {
		return nil, err
	}
	return tildeC, nil
}
