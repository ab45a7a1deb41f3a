package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/pdurable/relayer/chains/svm"
	"github.com/pushchain/pdurable/relayer/payload"
)

func treeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Create the merkle tree compressed NFTs are minted into",
	}
	cmd.AddCommand(treeCreateCmd(v))
	return cmd
}

func treeCreateCmd(v *viper.Viper) *cobra.Command {
	var (
		size        payload.TreeSize
		canopyDepth uint32
		public      bool
		collection  string
		budget      svm.Budget
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Allocate a merkle tree account and create its bubblegum tree config",
		Long: `
Create allocates a concurrent merkle tree owned by the account compression
program and initializes its bubblegum tree config with the fee payer as tree
creator, in one transaction sent with a recent blockhash. With --collection
the tree address is written to merkle_tree of that collection file, ready for
collection create.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := size.Validate(); err != nil {
				return err
			}
			var file *payload.CollectionFile
			if collection != "" {
				var err error
				if file, err = payload.LoadCollectionFile(collection); err != nil {
					return err
				}
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

			space := size.AccountSize(canopyDepth)
			lamports, err := client.GetMinimumBalanceForRentExemption(ctx, space)
			if err != nil {
				return fmt.Errorf("failed to get rent for %d bytes: %w", space, err)
			}

			treeKey, err := solana.NewRandomPrivateKey()
			if err != nil {
				return fmt.Errorf("failed to generate tree key: %w", err)
			}
			configIx, err := payload.NewCreateTreeConfigInstruction(payer.PublicKey(), payer.PublicKey(), treeKey.PublicKey(), size, public)
			if err != nil {
				return err
			}
			ixs := []solana.Instruction{
				payload.NewAllocTreeInstruction(payer.PublicKey(), treeKey.PublicKey(), size, canopyDepth, lamports),
				configIx,
			}

			sig, err := a.executor(client, budget, "").ExecuteImmediate(ctx, ixs, payer, treeKey)
			if err != nil {
				return err
			}
			treeConfig, err := payload.TreeConfigPDA(treeKey.PublicKey())
			if err != nil {
				return err
			}

			if file != nil {
				file.MerkleTree = treeKey.PublicKey().String()
				if err := payload.SaveCollectionFile(collection, file); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created merkle tree %s\n", treeKey.PublicKey())
			fmt.Fprintf(out, "Tree config: %s\n", treeConfig)
			fmt.Fprintf(out, "Size:        depth %d, buffer %d, %d bytes\n", size.MaxDepth, size.MaxBufferSize, space)
			fmt.Fprintf(out, "Signature:   %s\n", sig)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&size.MaxDepth, "max-depth", payload.DefaultTreeSize.MaxDepth, "tree depth, capacity is 2^depth leaves")
	cmd.Flags().Uint32Var(&size.MaxBufferSize, "max-buffer-size", payload.DefaultTreeSize.MaxBufferSize, "concurrent change buffer size")
	cmd.Flags().Uint32Var(&canopyDepth, "canopy-depth", 0, "proof levels cached on chain")
	cmd.Flags().BoolVar(&public, "public", false, "let anyone mint into the tree")
	cmd.Flags().StringVar(&collection, "collection", "", "collection file to record the tree in")
	cmd.Flags().Uint64Var(&budget.PriorityFeeMicroLamports, "priority-fee", 120000, "compute unit price in micro-lamports")
	cmd.Flags().Uint32Var(&budget.ComputeUnitLimit, "compute-units", 1000000, "compute unit limit")
	return cmd
}
