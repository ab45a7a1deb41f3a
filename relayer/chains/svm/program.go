package svm

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// ErrProgramNotDeployed is returned when a program account is missing or not executable.
var ErrProgramNotDeployed = errors.New("program is not deployed")

// CheckProgram verifies that programID holds an executable account.
func CheckProgram(ctx context.Context, accounts AccountFetcher, programID solana.PublicKey) error {
	account, err := accounts.GetAccountInfo(ctx, programID)
	if errors.Is(err, ErrAccountNotFound) || (err == nil && account == nil) {
		return errors.Wrapf(ErrProgramNotDeployed, "no account at %s", programID)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read program account %s", programID)
	}
	if !account.Executable {
		return errors.Wrapf(ErrProgramNotDeployed, "account %s is not executable", programID)
	}
	return nil
}
