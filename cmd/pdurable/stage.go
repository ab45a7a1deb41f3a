package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/pdurable/relayer/chains/svm"
	"github.com/pushchain/pdurable/relayer/payload"
	"github.com/pushchain/pdurable/relayer/queue"
	"github.com/pushchain/pdurable/relayer/stager"
)

func stageCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Build, sign and queue a durable-nonce transaction for later broadcast",
		Long: `
Stage reads the current value of a nonce account, builds a transaction anchored
to it, signs it with the fee payer and appends it to the staging queue. Nothing
is sent to the cluster. Each nonce account holds at most one staged transaction
until a drain confirms it or it is abandoned.
`,
	}
	cmd.AddCommand(stageMintCmd(v))
	cmd.AddCommand(stageTransferCmd(v))
	return cmd
}

func stageMintCmd(v *viper.Viper) *cobra.Command {
	var name, symbol, uri string
	cmd := &cobra.Command{
		Use:   "mint <collection.json> <nonce-address>",
		Short: "Stage a compressed NFT mint into an existing collection",
		Example: `  pdurable stage mint ./pushdrops.json 7xKX...nonce
  pdurable stage mint ./pushdrops.json 7xKX...nonce --name "Drop #1"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nonce, err := solana.PublicKeyFromBase58(args[1])
			if err != nil {
				return fmt.Errorf("invalid nonce address: %w", err)
			}
			file, err := payload.LoadCollectionFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = "Test nft" + strconv.FormatInt(time.Now().Unix(), 10)
			}

			return withStager(cmd.Context(), v, func(ctx context.Context, a *app, cluster svm.Cluster, payer solana.PrivateKey, s *stager.Stager) error {
				programID, err := a.deployedProgram(ctx, cluster)
				if err != nil {
					return err
				}
				collection, err := onChainCollection(ctx, cluster, programID, file)
				if err != nil {
					return err
				}
				ix, err := payload.NewMintInstruction(programID, payer.PublicKey(), collection, payload.MintArgs{
					Name:   name,
					URI:    uri,
					Symbol: symbol,
				})
				if err != nil {
					return err
				}
				return stageAndReport(ctx, cmd, s, stager.Request{
					NonceAccount: nonce,
					Instructions: []solana.Instruction{ix},
					FeePayer:     payer,
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "NFT name (default \"Test nft<unix time>\")")
	cmd.Flags().StringVar(&symbol, "symbol", "TSTSMBL", "NFT symbol")
	cmd.Flags().StringVar(&uri, "uri", "anyuri.com", "NFT metadata URI")
	return cmd
}

func stageTransferCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <recipient> <lamports> <nonce-address>",
		Short: "Stage a SOL transfer from the fee payer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid recipient: %w", err)
			}
			lamports, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lamports: %w", err)
			}
			nonce, err := solana.PublicKeyFromBase58(args[2])
			if err != nil {
				return fmt.Errorf("invalid nonce address: %w", err)
			}

			return withStager(cmd.Context(), v, func(ctx context.Context, a *app, _ svm.Cluster, payer solana.PrivateKey, s *stager.Stager) error {
				ix := system.NewTransferInstruction(lamports, payer.PublicKey(), recipient).Build()
				return stageAndReport(ctx, cmd, s, stager.Request{
					NonceAccount: nonce,
					Instructions: []solana.Instruction{ix},
					FeePayer:     payer,
				})
			})
		},
	}
}

type stageFunc func(ctx context.Context, a *app, cluster svm.Cluster, payer solana.PrivateKey, s *stager.Stager) error

// withStager opens the queue and the cluster connection for one staging command.
func withStager(ctx context.Context, v *viper.Viper, fn stageFunc) error {
	a, err := loadApp(v, logOutput)
	if err != nil {
		return err
	}
	payer, err := a.payer()
	if err != nil {
		return err
	}
	q, err := a.openQueue()
	if err != nil {
		return err
	}
	defer q.Close()

	client, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(ctx, a, client, payer, a.stager(client, q))
}

func stageAndReport(ctx context.Context, cmd *cobra.Command, s *stager.Stager, req stager.Request) error {
	rec, err := s.Stage(ctx, req)
	if errors.Is(err, queue.ErrAlreadyReserved) {
		return fmt.Errorf("nonce %s already has a staged transaction, drain or abandon it first", req.NonceAccount)
	}
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Staged transaction for nonce %s\n", rec.Nonce)
	tx, err := svm.DecodeTransaction(rec.Payload)
	if err == nil {
		if sig, ok := svm.FeePayerSignature(tx); ok {
			fmt.Fprintf(out, "Signature: %s\n", sig)
		}
	}
	return nil
}

// onChainCollection reads the collection config account. The mint needs the
// collection key and tree the program recorded, which the local file may not
// have yet.
func onChainCollection(ctx context.Context, cluster svm.AccountFetcher, programID solana.PublicKey, file *payload.CollectionFile) (*payload.CollectionConfig, error) {
	local, err := file.Config()
	if err != nil {
		return nil, err
	}
	address, err := payload.ConfigPDA(programID, local.Name)
	if err != nil {
		return nil, err
	}
	account, err := cluster.GetAccountInfo(ctx, address)
	if errors.Is(err, svm.ErrAccountNotFound) {
		return nil, fmt.Errorf("collection %q has no config account at %s, run collection create first", local.Name, address)
	}
	if err != nil {
		return nil, err
	}
	if account == nil || account.Data == nil {
		return nil, fmt.Errorf("collection %q has no config account at %s, run collection create first", local.Name, address)
	}
	return payload.DecodeCollectionConfig(account.Data.GetBinary())
}
