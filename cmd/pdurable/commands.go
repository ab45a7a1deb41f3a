package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/pdurable/relayer/config"
	"github.com/pushchain/pdurable/relayer/keys"
)

// Set with -ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
)

func InitRootCmd(rootCmd *cobra.Command, v *viper.Viper) {
	rootCmd.AddCommand(initCmd(v))
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(stageCmd(v))
	rootCmd.AddCommand(drainCmd(v))
	rootCmd.AddCommand(queueCmd(v))
	rootCmd.AddCommand(collectionCmd(v))
	rootCmd.AddCommand(treeCmd(v))
	rootCmd.AddCommand(nonceCmd(v))
	rootCmd.AddCommand(serveCmd(v))
}

func initCmd(v *viper.Viper) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the home directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			home := keys.ExpandHome(v.GetString(flagHome))
			path := filepath.Join(home, "config", "pdurable_config.json")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s, use --force to overwrite", path)
			}

			cfg, err := config.LoadDefaultConfig()
			if err != nil {
				return err
			}
			cfg.NodeHome = home
			if urls := v.GetStringSlice(flagRPCURL); len(urls) > 0 {
				cfg.RPCURLs = urls
			}
			if kp := v.GetString(flagKeypair); kp != "" {
				cfg.KeypairPath = kp
			}
			if backend := v.GetString(flagQueueBackend); backend != "" {
				cfg.QueueBackend = config.QueueBackend(backend)
			}
			if err := config.Save(cfg, home); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print pdurable version info",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:    %s\n", "pdurable")
			fmt.Fprintf(out, "Version: %s\n", Version)
			fmt.Fprintf(out, "Commit:  %s\n", Commit)
		},
	}
}
