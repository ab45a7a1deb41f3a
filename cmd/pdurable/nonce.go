package main

import (
	"fmt"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/pdurable/relayer/chains/svm"
	"github.com/pushchain/pdurable/relayer/keys"
)

// Rent-exempt balance for an 80 byte account plus headroom.
const defaultNonceLamports = 1_500_000

func nonceCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nonce",
		Short: "Create and inspect durable nonce accounts",
	}
	cmd.AddCommand(nonceShowCmd(v))
	cmd.AddCommand(nonceCreateCmd(v))
	return cmd
}

func nonceShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show <address>",
		Short: "Print the current state of a nonce account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			address, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid nonce address: %w", err)
			}
			a, err := loadApp(v, logOutput)
			if err != nil {
				return err
			}
			client, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			state, err := svm.NewNonceReader(client).Read(ctx, address)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Nonce:           %s\n", state.Nonce)
			fmt.Fprintf(out, "Authority:       %s\n", state.Authority)
			fmt.Fprintf(out, "Fee (lamports):  %d\n", state.LamportsPerSignature)
			return nil
		},
	}
}

func nonceCreateCmd(v *viper.Viper) *cobra.Command {
	var (
		authority string
		lamports  uint64
		outPath   string
		encrypt   bool
		budget    svm.Budget
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and initialize a new nonce account",
		Long: `
Create generates a keypair for the nonce account, funds it from the fee payer
and initializes it with the given authority (the fee payer by default). The
keypair is written to <home>/nonces/<address>.json unless --out is set, and
with --encrypt it is sealed with the password in PDURABLE_KEY_PASSWORD.
Create returns once the account is finalized.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(v, logOutput)
			if err != nil {
				return err
			}
			payer, err := a.payer()
			if err != nil {
				return err
			}
			auth := payer.PublicKey()
			if authority != "" {
				if auth, err = solana.PublicKeyFromBase58(authority); err != nil {
					return fmt.Errorf("invalid authority: %w", err)
				}
			}

			nonceKey, err := solana.NewRandomPrivateKey()
			if err != nil {
				return fmt.Errorf("failed to generate nonce account key: %w", err)
			}
			path := outPath
			if path == "" {
				path = filepath.Join(a.cfg.NodeHome, "nonces", nonceKey.PublicKey().String()+".json")
			}
			// Saved first so a landed account is never left without its key.
			if encrypt {
				if a.keyPassword == "" {
					return fmt.Errorf("--encrypt needs PDURABLE_KEY_PASSWORD")
				}
				err = keys.SaveEncryptedKeypair(path, nonceKey, a.keyPassword)
			} else {
				err = keys.SaveKeypair(path, nonceKey)
			}
			if err != nil {
				return err
			}

			client, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			ixs := svm.CreateNonceAccountInstructions(payer.PublicKey(), nonceKey.PublicKey(), auth, lamports)
			// Staged transactions depend on the account surviving a fork.
			sig, err := a.executor(client, budget, rpc.CommitmentFinalized).ExecuteImmediate(ctx, ixs, payer, nonceKey)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created nonce account %s\n", nonceKey.PublicKey())
			fmt.Fprintf(out, "Authority: %s\n", auth)
			fmt.Fprintf(out, "Keypair:   %s\n", path)
			fmt.Fprintf(out, "Signature: %s\n", sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "nonce authority (default fee payer)")
	cmd.Flags().Uint64Var(&lamports, "lamports", defaultNonceLamports, "lamports to fund the account with")
	cmd.Flags().StringVar(&outPath, "out", "", "where to write the nonce account keypair")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "encrypt the keypair file with PDURABLE_KEY_PASSWORD")
	cmd.Flags().Uint64Var(&budget.PriorityFeeMicroLamports, "priority-fee", 120000, "compute unit price in micro-lamports")
	cmd.Flags().Uint32Var(&budget.ComputeUnitLimit, "compute-units", 30000, "compute unit limit")
	return cmd
}
