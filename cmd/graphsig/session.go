package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/privacybydesign/graphsig"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/internal/common"
	"github.com/privacybydesign/graphsig/signed"
	"github.com/privacybydesign/graphsig/transcript"
)

func (c *cli) verifierKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verifier-key",
		Short: "Generate the ECDSA key a verifier signs its session requests with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.verifierKey()
		},
	}
	flags := cmd.Flags()
	flags.String("verifier-key", "verifier.pem", "verifier private key file")
	flags.String("verifier-public-key", "verifier.pub.pem", "verifier public key file")
	return cmd
}

func (c *cli) verifierKey() error {
	sk, err := signed.GenerateKey()
	if err != nil {
		return err
	}
	skPem, err := signed.MarshalPemPrivateKey(sk)
	if err != nil {
		return err
	}
	pkPem, err := signed.MarshalPemPublicKey(&sk.PublicKey)
	if err != nil {
		return err
	}
	if err = os.WriteFile(c.v.GetString("verifier-key"), skPem, 0600); err != nil {
		return err
	}
	return os.WriteFile(c.v.GetString("verifier-public-key"), pkPem, 0644)
}

func (c *cli) requestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Create a signed session request with a fresh nonce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.request()
		},
	}
	flags := cmd.Flags()
	flags.IntSlice("vertices", nil, "positions of the vertices to commit to")
	flags.Bool("coprime", false, "request a proof that the committed vertices share no labels")
	flags.String("verifier-key", "verifier.pem", "verifier private key file")
	flags.String("request", "request.cbor", "output session request file")
	return cmd
}

func (c *cli) verifierPrivateKey() (*ecdsa.PrivateKey, error) {
	b, err := os.ReadFile(c.v.GetString("verifier-key"))
	if err != nil {
		return nil, err
	}
	return signed.UnmarshalPemPrivateKey(b)
}

func (c *cli) request() error {
	v := c.v
	pk, err := c.publicKey()
	if err != nil {
		return err
	}
	sk, err := c.verifierPrivateKey()
	if err != nil {
		return err
	}
	req, err := graphsig.NewSessionRequest(pk, graphsig.ProofRequest{
		Vertices: v.GetIntSlice("vertices"),
		Coprime:  v.GetBool("coprime"),
	})
	if err != nil {
		return err
	}
	msg, err := req.Sign(sk)
	if err != nil {
		return err
	}
	return os.WriteFile(v.GetString("request"), msg, 0644)
}

func (c *cli) proveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Answer a session request with a proof about a credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.prove()
		},
	}
	flags := cmd.Flags()
	flags.String("credential", "credential.cbor", "credential file")
	flags.String("request", "request.cbor", "session request file")
	flags.String("verifier-public-key", "verifier.pub.pem", "public key of the verifier that signed the request")
	flags.String("proof", "proof.cbor", "output proof file")
	return cmd
}

func (c *cli) prove() error {
	v := c.v
	pk, err := c.publicKey()
	if err != nil {
		return err
	}
	cred, err := graphsig.NewCredentialFromFile(pk, v.GetString("credential"))
	if err != nil {
		return err
	}
	b, err := os.ReadFile(v.GetString("verifier-public-key"))
	if err != nil {
		return err
	}
	verifier, err := signed.UnmarshalPemPublicKey(b)
	if err != nil {
		return err
	}
	msg, err := os.ReadFile(v.GetString("request"))
	if err != nil {
		return err
	}
	req, err := graphsig.ParseSignedSessionRequest(verifier, msg)
	if err != nil {
		return err
	}

	proof, err := req.Prove(cred)
	if err != nil {
		return err
	}
	enc, err := graph.NewEncoder(pk, v.GetStringSlice("alphabet"))
	if err != nil {
		return err
	}
	for _, i := range req.Request.Vertices {
		if m, ok := cred.Vertex(i); ok {
			graphsig.Logger.WithField("vertex", i).Infof("committed to vertex with labels %v", enc.Labels(m))
		}
	}
	f, err := os.Create(v.GetString("proof"))
	if err != nil {
		return err
	}
	defer common.Close(f)
	return proof.Encode(f)
}

func (c *cli) verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a proof answering one of our session requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.verify(cmd)
		},
	}
	flags := cmd.Flags()
	flags.String("verifier-key", "verifier.pem", "verifier private key file")
	flags.String("request", "request.cbor", "session request file")
	flags.String("proof", "proof.cbor", "proof file")
	return cmd
}

func (c *cli) verify(cmd *cobra.Command) error {
	v := c.v
	pk, err := c.publicKey()
	if err != nil {
		return err
	}
	sk, err := c.verifierPrivateKey()
	if err != nil {
		return err
	}
	msg, err := os.ReadFile(v.GetString("request"))
	if err != nil {
		return err
	}
	req, err := graphsig.ParseSignedSessionRequest(&sk.PublicKey, msg)
	if err != nil {
		return err
	}

	f, err := os.Open(v.GetString("proof"))
	if err != nil {
		return err
	}
	defer common.Close(f)
	proof, err := transcript.Decode(f)
	if err != nil {
		return err
	}
	result, err := req.Verify(pk, proof)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
