// Package clause implements the sigma protocols that make up a proof. Every clause runs
// through the phases precompute, commit, respond and verify, in that order, and keeps all
// values it shares with other clauses in the registry of its session.
package clause

import (
	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/internal/common"
	"github.com/privacybydesign/graphsig/keys"
	"github.com/privacybydesign/graphsig/registry"
)

var Logger = logrus.StandardLogger()

var (
	// ErrPhaseOrder is returned when a phase is called out of order.
	ErrPhaseOrder = errors.New("clause phase called out of order")
	// ErrPrecondition signals misuse of a clause, e.g. non-coprime exponents.
	ErrPrecondition = errors.New("clause precondition violated")
	// ErrResponseLength is returned by checkers for responses that are too long.
	ErrResponseLength = errors.New("response out of range")
)

// State is the phase a clause is in.
type State int

const (
	Created State = iota
	Precomputed
	WitnessCommitted
	Challenged
	Responded
	Verified
	Rejected
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Precomputed:
		return "precomputed"
	case WitnessCommitted:
		return "witness committed"
	case Challenged:
		return "challenged"
	case Responded:
		return "responded"
	case Verified:
		return "verified"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Response is a value a clause publishes, under its registry key.
type Response struct {
	Key   registry.Key
	Value *big.Int
}

// Prover is the proving side of a clause.
type Prover interface {
	Kind() string
	State() State

	// Precompute derives the public values other clauses may need before any witness
	// randomness is drawn. Commit calls it if it was not called explicitly.
	Precompute() error
	// Commit samples the witness randomness and returns the public witness.
	Commit() (*big.Int, error)
	// Respond computes and stores the responses to challenge c.
	Respond(c *big.Int) ([]Response, error)
	// Verify recomputes the witness from the responses. It returns false if called before
	// Respond.
	Verify() bool

	// Public returns the public values that must travel with the proof. Valid after
	// Precompute.
	Public() []Response
}

// Checker is the verifying side of a clause. The values it reads are expected in the registry
// of its session, under the keys the prover published them.
type Checker interface {
	Kind() string
	// Reconstruct recomputes the public witness from the responses and challenge c.
	Reconstruct(c *big.Int) (*big.Int, error)
}

// Session holds what the clauses of one proving or verifying session share. Values a clause
// produces are stored under Namespace; a checker reads the values it received under
// registry.Proving or registry.Issuing.
type Session struct {
	Registry  *registry.Registry
	PK        *keys.PublicKey
	Namespace string
}

// NewSession starts a session with an empty registry.
func NewSession(pk *keys.PublicKey, namespace string) *Session {
	return &Session{Registry: registry.New(), PK: pk, Namespace: namespace}
}

func (s *Session) key(kind, role string) registry.Key {
	return registry.NewKey(s.Namespace, kind, role)
}

func (s *Session) indexedKey(kind, role string, index int) registry.Key {
	return registry.NewIndexedKey(s.Namespace, kind, role, index)
}

func (s *Session) put(k registry.Key, v *big.Int) error {
	return s.Registry.Put(k, v)
}

func (s *Session) get(k registry.Key) (*big.Int, error) {
	return s.Registry.Get(k)
}

// multiExp computes the product of the given powers modulo N.
func (s *Session) multiExp(bases, exps []*big.Int) (*big.Int, error) {
	return s.PK.MultiExp(bases, exps)
}

func (s *Session) params() *keys.SystemParameters {
	return s.PK.Params
}

// phase implements the state machine shared by all provers.
type phase struct {
	kind      string
	state     State
	challenge *big.Int
}

func (p *phase) State() State {
	return p.state
}

func (p *phase) Kind() string {
	return p.kind
}

// advance moves from one of the allowed states to the next one.
func (p *phase) advance(to State, from ...State) error {
	for _, f := range from {
		if p.state == f {
			Logger.Tracef("%s clause: %s -> %s", p.kind, p.state, to)
			p.state = to
			return nil
		}
	}
	return errors.WrapPrefix(ErrPhaseOrder, p.kind+" clause cannot move from "+p.state.String()+" to "+to.String(), 0)
}

// fail makes the clause terminal after an error.
func (p *phase) fail(err error) error {
	if p.state != Rejected {
		Logger.Debugf("%s clause aborted in state %s: %v", p.kind, p.state, err)
		p.state = Rejected
	}
	return err
}

// finish records the outcome of self-verification.
func (p *phase) finish(ok bool) bool {
	if ok {
		p.state = Verified
	} else {
		Logger.Debugf("%s clause rejected its own responses", p.kind)
		p.state = Rejected
	}
	return ok
}

// beginCommit runs the implicit precompute, then moves to WitnessCommitted.
func (p *phase) beginCommit(precompute func() error) error {
	if p.state == Created {
		if err := precompute(); err != nil {
			return err
		}
	}
	return p.advance(WitnessCommitted, Precomputed)
}

// beginRespond records the challenge.
func (p *phase) beginRespond(c *big.Int) error {
	if c == nil || c.Sign() <= 0 {
		return p.fail(errors.WrapPrefix(ErrPrecondition, "invalid challenge", 0))
	}
	if err := p.advance(Challenged, WitnessCommitted); err != nil {
		return err
	}
	p.challenge = new(big.Int).Set(c)
	return nil
}

// response computes tilde + c*x.
func response(tilde, c, x *big.Int) *big.Int {
	r := new(big.Int).Mul(c, x)
	return r.Add(r, tilde)
}

// checkLength verifies that a response to witness randomness of the given length is in range.
func checkLength(k registry.Key, v *big.Int, bits uint) error {
	if uint(v.BitLen()) > bits+1 {
		return errors.WrapPrefix(ErrResponseLength, k.String(), 0)
	}
	return nil
}

// witness samples fresh witness randomness of the given length and stores it.
func (s *Session) witness(k registry.Key, bits uint) (*big.Int, error) {
	t, err := common.RandomSignedBigInt(bits)
	if err != nil {
		return nil, err
	}
	if err = s.put(k, t); err != nil {
		return nil, err
	}
	return t, nil
}
