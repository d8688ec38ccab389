package main

import (
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/privacybydesign/graphsig"
	"github.com/privacybydesign/graphsig/keys"
)

func (c *cli) keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an issuer key pair",
		Long: `Generate an issuer key pair with one base for the master secret and one base per vertex
and edge of the configured graph encoding. Generating safe primes may take minutes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.keygen(cmd)
		},
	}
	flags := cmd.Flags()
	flags.String("private-key", "isk.xml", "issuer private key file")
	flags.Int("keylength", 2048, "modulus length in bits")
	flags.Uint("counter", 0, "key counter")
	flags.Duration("validity", 365*24*time.Hour, "validity period of the key")
	flags.Bool("force", false, "overwrite existing key files")
	return cmd
}

func (c *cli) keygen(cmd *cobra.Command) error {
	v := c.v
	length := v.GetInt("keylength")
	params, ok := keys.DefaultSystemParameters[length]
	if !ok {
		return errors.WrapPrefix(keys.ErrUnknownKeyLength, strconv.Itoa(length), 0)
	}
	enc, err := c.encoding()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	graphsig.Logger.Infof("generating %d-bit key pair for %d vertices and %d edges", length, enc.MaxVertices, enc.MaxEdges)
	sk, pk, err := keys.GenerateKeyPair(ctx, params, enc, v.GetUint("counter"), time.Now().Add(v.GetDuration("validity")))
	if err != nil {
		return err
	}

	force := v.GetBool("force")
	if _, err = pk.WriteToFile(v.GetString("public-key"), force); err != nil {
		return err
	}
	if _, err = sk.WriteToFile(v.GetString("private-key"), force); err != nil {
		return err
	}
	graphsig.Logger.Infof("wrote %s and %s", v.GetString("public-key"), v.GetString("private-key"))
	return nil
}
