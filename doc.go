// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package graphsig implements Camenisch-Lysyanskaya signatures over labelled graphs together
// with zero-knowledge proofs about them. An issuer signs the encoding of a graph in the
// interactive issuing protocol (see Signer and Recipient); the holder of the resulting
// Credential can later prove possession of the signature, optionally committing to some of
// the vertices and proving that their exponents are pairwise coprime, without revealing the
// signature itself. Proofs are made non-interactive with the Fiat-Shamir heuristic and travel
// as transcripts (see package transcript).
package graphsig
