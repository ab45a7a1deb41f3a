package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/pdurable/relayer/chains/svm"
	"github.com/pushchain/pdurable/relayer/payload"
)

func collectionCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Create and inspect NFT collections",
	}
	cmd.AddCommand(collectionCreateCmd(v))
	cmd.AddCommand(collectionShowCmd(v))
	return cmd
}

func collectionCreateCmd(v *viper.Viper) *cobra.Command {
	var budget svm.Budget
	cmd := &cobra.Command{
		Use:   "create <collection.json>",
		Short: "Create the collection config and mint the collection NFT now",
		Long: `
Create sends the collection program's create instruction with a recent
blockhash and waits for it to confirm. It does not use the staging queue.
On success the collection mint, config and authority keys are written back
to the collection file.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			file, err := payload.LoadCollectionFile(path)
			if err != nil {
				return err
			}
			cfg, err := file.Config()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := loadApp(v, logOutput)
			if err != nil {
				return err
			}
			payer, err := a.payer()
			if err != nil {
				return err
			}
			client, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			programID, err := a.deployedProgram(ctx, client)
			if err != nil {
				return err
			}
			mint, err := solana.NewRandomPrivateKey()
			if err != nil {
				return fmt.Errorf("failed to generate collection mint: %w", err)
			}
			ix, addrs, err := payload.NewCreateCollectionInstruction(programID, payer.PublicKey(), mint.PublicKey(), cfg)
			if err != nil {
				return err
			}

			sig, err := a.executor(client, budget, "").ExecuteImmediate(ctx, []solana.Instruction{ix}, payer, mint)
			if err != nil {
				return err
			}

			file.Record(cfg, addrs)
			if err := payload.SaveCollectionFile(path, file); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created collection %q\n", cfg.Name)
			fmt.Fprintf(out, "Signature:      %s\n", sig)
			fmt.Fprintf(out, "Collection key: %s\n", cfg.CollectionKey)
			fmt.Fprintf(out, "Config:         %s\n", addrs.Config)
			fmt.Fprintf(out, "Authority:      %s\n", addrs.Authority)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&budget.PriorityFeeMicroLamports, "priority-fee", 120000, "compute unit price in micro-lamports")
	cmd.Flags().Uint32Var(&budget.ComputeUnitLimit, "compute-units", 700000, "compute unit limit")
	return cmd
}

func collectionShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show <collection.json>",
		Short: "Print the collection config recorded on chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			file, err := payload.LoadCollectionFile(args[0])
			if err != nil {
				return err
			}
			a, err := loadApp(v, logOutput)
			if err != nil {
				return err
			}
			programID, err := a.programID()
			if err != nil {
				return err
			}
			client, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			cfg, err := onChainCollection(ctx, client, programID, file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:           %s\n", cfg.Name)
			fmt.Fprintf(out, "Symbol:         %s\n", cfg.Symbol)
			fmt.Fprintf(out, "URI:            %s\n", cfg.URI)
			fmt.Fprintf(out, "Royalty (bps):  %d\n", cfg.Sfbp)
			fmt.Fprintf(out, "Collection key: %s\n", cfg.CollectionKey)
			fmt.Fprintf(out, "Authority:      %s\n", cfg.AuthPDA)
			fmt.Fprintf(out, "Creator:        %s (%d%%)\n", cfg.Creator1, cfg.Creator1Cut)
			fmt.Fprintf(out, "Update auth:    %s\n", cfg.UpdateAuth)
			fmt.Fprintf(out, "Merkle tree:    %s\n", cfg.MerkleTree)
			return nil
		},
	}
}
