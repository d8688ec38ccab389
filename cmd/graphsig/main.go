// Command graphsig generates issuer keys, issues graph credentials, and creates and verifies
// proofs about them. Every option can also be set in graphsig.yaml or through a GRAPHSIG_
// environment variable, e.g. GRAPHSIG_PUBLIC_KEY for --public-key.
package main

import (
	"os"
	"strings"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/privacybydesign/graphsig"
	"github.com/privacybydesign/graphsig/keys"
)

const (
	envPrefix  = "GRAPHSIG"
	configName = "graphsig"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds the configuration of one invocation.
type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:          "graphsig",
		Short:        "Issue graph credentials and prove statements about them",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default "+configName+".yaml in the working directory)")
	flags.String("log-level", "info", "log level: trace, debug, info, warn or error")
	flags.String("public-key", "ipk.xml", "issuer public key file")
	flags.StringSlice("alphabet", nil, "label alphabet shared by the issuer and all verifiers")

	root.AddCommand(
		c.keygenCmd(),
		c.issueCmd(),
		c.verifierKeyCmd(),
		c.requestCmd(),
		c.proveCmd(),
		c.verifyCmd(),
	)
	return root
}

// initConfig binds the flags of the running command, the environment and the config file.
// Flags take precedence over the environment, which takes precedence over the file.
func (c *cli) initConfig(cmd *cobra.Command) error {
	v := c.v
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	file := v.GetString("config")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return errors.WrapPrefix(err, "error when reading config file", 0)
		}
	}

	level, err := logrus.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return err
	}
	graphsig.Logger.SetLevel(level)
	if used := v.ConfigFileUsed(); used != "" {
		graphsig.Logger.Debugf("using config file %s", used)
	}
	return nil
}

// encoding returns the graph encoding from the "encoding" section of the config, falling back
// to the defaults for keys that are not set.
func (c *cli) encoding() (keys.EncodingParameters, error) {
	enc := keys.DefaultEncodingParameters
	if c.v.IsSet("encoding") {
		if err := c.v.UnmarshalKey("encoding", &enc); err != nil {
			return enc, err
		}
	}
	return enc, nil
}

func (c *cli) publicKey() (*keys.PublicKey, error) {
	return keys.NewPublicKeyFromFile(c.v.GetString("public-key"))
}

func (c *cli) privateKey() (*keys.PrivateKey, error) {
	return keys.NewPrivateKeyFromFile(c.v.GetString("private-key"), false)
}
