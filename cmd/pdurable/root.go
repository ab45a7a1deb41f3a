package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/pdurable/relayer/config"
)

const envPrefix = "PDURABLE"

// Flag names, also the viper keys. PDURABLE_<NAME> with dashes as
// underscores sets the same value from the environment.
const (
	flagHome         = "home"
	flagRPCURL       = "rpc-url"
	flagKeypair      = "keypair"
	flagQueueBackend = "queue-backend"
	flagQueuePath    = "queue-path"
	flagLogFormat    = "log-format"

	// keyPassword is read from PDURABLE_KEY_PASSWORD only.
	keyPassword = "key-password"
)

func NewRootCmd() *cobra.Command {
	return newRootCmd(viper.New())
}

// newRootCmd builds the command tree with flags and environment bound to v.
func newRootCmd(v *viper.Viper) *cobra.Command {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "pdurable",
		Short:         "Stage durable-nonce Solana transactions and broadcast them later",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String(flagHome, defaultHome(), "node home directory")
	flags.StringSlice(flagRPCURL, nil, "RPC endpoint, repeatable (overrides rpc_urls)")
	flags.String(flagKeypair, "", "fee payer keypair file (overrides keypair_path)")
	flags.String(flagQueueBackend, "", "staging queue backend: file or sqlite")
	flags.String(flagQueuePath, "", "staging queue location")
	flags.String(flagLogFormat, "", "log format: console or json")
	_ = v.BindPFlags(flags)

	InitRootCmd(rootCmd, v)

	return rootCmd
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return config.DefaultNodeHomeDir
	}
	return filepath.Join(home, config.DefaultNodeHomeDir)
}
