package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/pushchain/pdurable/relayer/chains/svm"
	"github.com/pushchain/pdurable/relayer/config"
	"github.com/pushchain/pdurable/relayer/drainer"
	"github.com/pushchain/pdurable/relayer/keys"
	"github.com/pushchain/pdurable/relayer/logger"
	"github.com/pushchain/pdurable/relayer/metrics"
	"github.com/pushchain/pdurable/relayer/queue"
	"github.com/pushchain/pdurable/relayer/stager"
)

// logOutput receives structured logs. Command output goes to stdout.
var logOutput io.Writer = os.Stderr

// app holds what every command derives from config.
type app struct {
	cfg        config.Config
	logger     zerolog.Logger
	commitment rpc.CommitmentType
	metrics    *metrics.Metrics
	// keyPassword unlocks encrypted keypair files.
	keyPassword string
}

// loadApp reads <home>/config/pdurable_config.json, falling back to the
// embedded defaults when it does not exist, then applies flag and
// environment overrides and the Solana CLI config.
func loadApp(v *viper.Viper, logOut io.Writer) (*app, error) {
	home := keys.ExpandHome(v.GetString(flagHome))

	cfg, err := config.Load(home)
	if errors.Is(err, os.ErrNotExist) {
		defaults, derr := config.LoadDefaultConfig()
		if derr != nil {
			return nil, derr
		}
		cfg = *defaults
		cfg.NodeHome = home
	} else if err != nil {
		return nil, err
	}

	if urls := v.GetStringSlice(flagRPCURL); len(urls) > 0 {
		cfg.RPCURLs = urls
	}
	if kp := v.GetString(flagKeypair); kp != "" {
		cfg.KeypairPath = kp
	}
	if backend := v.GetString(flagQueueBackend); backend != "" {
		cfg.QueueBackend = config.QueueBackend(backend)
	}
	if path := v.GetString(flagQueuePath); path != "" {
		cfg.QueuePath = keys.ExpandHome(path)
	}
	if format := v.GetString(flagLogFormat); format != "" {
		cfg.LogFormat = format
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := config.ApplySolanaCLIDefaults(&cfg); err != nil {
		return nil, err
	}

	commitment, err := svm.ParseCommitment(cfg.Commitment)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:         cfg,
		logger:      logger.New(logOut, cfg.LogLevel, cfg.LogFormat, cfg.LogSampler),
		commitment:  commitment,
		keyPassword: v.GetString(keyPassword),
	}, nil
}

func (a *app) openQueue() (queue.Queue, error) {
	path := a.cfg.ResolvedQueuePath()
	switch a.cfg.QueueBackend {
	case config.QueueBackendSQLite:
		return queue.OpenSQLQueue(path, a.logger)
	default:
		return queue.NewFileQueue(path, a.logger)
	}
}

func (a *app) dial(ctx context.Context) (*svm.RPCClient, error) {
	if err := a.cfg.RequireNetwork(); err != nil {
		return nil, err
	}
	return svm.NewRPCClient(ctx, svm.RPCClientConfig{
		URLs:                a.cfg.RPCURLs,
		ExpectedGenesisHash: a.cfg.GenesisHash,
		Commitment:          a.commitment,
		RequestTimeout:      a.cfg.RPCRequestTimeout(),
	}, a.logger)
}

func (a *app) payer() (solana.PrivateKey, error) {
	if err := a.cfg.RequireNetwork(); err != nil {
		return nil, err
	}
	return keys.LoadKeypairWithPassword(a.cfg.KeypairPath, a.keyPassword)
}

func (a *app) programID() (solana.PublicKey, error) {
	if a.cfg.ProgramID == "" {
		return solana.PublicKey{}, errors.New("program_id is not configured")
	}
	id, err := solana.PublicKeyFromBase58(a.cfg.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program_id: %w", err)
	}
	return id, nil
}

// deployedProgram returns the configured program id after checking that it
// holds an executable account.
func (a *app) deployedProgram(ctx context.Context, accounts svm.AccountFetcher) (solana.PublicKey, error) {
	programID, err := a.programID()
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := svm.CheckProgram(ctx, accounts, programID); err != nil {
		return solana.PublicKey{}, err
	}
	return programID, nil
}

func (a *app) budget() svm.Budget {
	return svm.Budget{
		PriorityFeeMicroLamports: a.cfg.PriorityFeeMicroLamports,
		ComputeUnitLimit:         a.cfg.ComputeUnitLimit,
	}
}

func (a *app) stager(cluster svm.Cluster, q queue.Queue) *stager.Stager {
	return stager.New(cluster, q, stager.Config{Budget: a.budget(), Metrics: a.metrics}, a.logger)
}

func (a *app) drainer(cluster svm.Cluster, q queue.Queue) *drainer.Drainer {
	return drainer.NewDrainer(drainer.Config{
		Queue:          q,
		Cluster:        cluster,
		Commitment:     a.commitment,
		ConfirmTimeout: a.cfg.ConfirmTimeout(),
		PollInterval:   a.cfg.ConfirmPollInterval(),
		SkipPreflight:  a.cfg.SkipPreflight,
		Interval:       a.cfg.DrainInterval(),
		Metrics:        a.metrics,
		Logger:         a.logger,
	})
}

// executor returns the immediate submission path with budget overriding the
// configured one. It confirms at commitment, or at the configured level when
// commitment is empty.
func (a *app) executor(cluster svm.Cluster, budget svm.Budget, commitment rpc.CommitmentType) *svm.Executor {
	if commitment == "" {
		commitment = a.commitment
	}
	confirmer := svm.NewConfirmer(cluster, svm.ConfirmerConfig{
		Commitment:   commitment,
		Timeout:      a.cfg.ConfirmTimeout(),
		PollInterval: a.cfg.ConfirmPollInterval(),
	}, a.logger)
	return svm.NewExecutor(cluster, confirmer, svm.ExecutorConfig{
		Budget:           budget,
		SkipPreflight:    a.cfg.SkipPreflight,
		MaxSubmitRetries: a.cfg.MaxSubmitRetries,
	}, a.logger)
}
