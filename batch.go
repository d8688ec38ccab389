package graphsig

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/transcript"
)

// ProofTask is one proof of a batch.
type ProofTask struct {
	Credential *Credential
	Request    ProofRequest
	Nonce      *big.Int
}

// ProveBatch creates the proofs of independent tasks concurrently. Every task runs in its own
// session; the first error cancels the tasks that have not started yet.
func ProveBatch(ctx context.Context, tasks []ProofTask) ([]*transcript.Transcript, error) {
	g, ctx := errgroup.WithContext(ctx)
	proofs := make([]*transcript.Transcript, len(tasks))
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			proof, err := task.Credential.CreateProof(task.Request, task.Nonce)
			if err != nil {
				return err
			}
			proofs[i] = proof
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return proofs, nil
}
