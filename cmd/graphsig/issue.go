package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/privacybydesign/graphsig"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/keys"
)

func (c *cli) issueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a credential over a graph",
		Long: `Issue a credential over the graph in a JSON file, running both the issuer and the
recipient side of the issuing protocol. The master secret is drawn freshly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.issue()
		},
	}
	flags := cmd.Flags()
	flags.String("private-key", "isk.xml", "issuer private key file")
	flags.String("graph", "graph.json", "graph to sign, as JSON")
	flags.String("credential", "credential.cbor", "output credential file")
	return cmd
}

func readGraph(filename string) (*graph.Graph, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	g := &graph.Graph{}
	if err = json.Unmarshal(b, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (c *cli) issue() error {
	v := c.v
	pk, err := c.publicKey()
	if err != nil {
		return err
	}
	sk, err := c.privateKey()
	if err != nil {
		return err
	}
	g, err := readGraph(v.GetString("graph"))
	if err != nil {
		return err
	}
	enc, err := graph.NewEncoder(pk, v.GetStringSlice("alphabet"))
	if err != nil {
		return err
	}
	bases, err := enc.Encode(g)
	if err != nil {
		return err
	}

	cred, err := issueLocally(sk, pk, bases)
	if err != nil {
		return err
	}
	if err = cred.WriteToFile(v.GetString("credential")); err != nil {
		return err
	}
	graphsig.Logger.Infof("issued credential over %d vertices and %d edges to %s",
		len(g.Vertices), len(g.Edges), v.GetString("credential"))
	return nil
}

// issueLocally runs the four rounds of the issuing protocol between a signer and a recipient
// in the same process.
func issueLocally(sk *keys.PrivateKey, pk *keys.PublicKey, bases graph.BaseCollection) (*graphsig.Credential, error) {
	signer, err := graphsig.NewSigner(sk, pk, bases)
	if err != nil {
		return nil, err
	}
	secret, err := graphsig.GenerateSecret(pk)
	if err != nil {
		return nil, err
	}
	recipient := graphsig.NewRecipient(pk, secret)

	msg1, err := signer.StartIssuance()
	if err != nil {
		return nil, err
	}
	msg2, err := recipient.CommitToSecretAndProve(msg1)
	if err != nil {
		return nil, err
	}
	msg3, err := signer.IssueSignature(msg2)
	if err != nil {
		return nil, err
	}
	return recipient.ConstructCredential(msg3)
}
