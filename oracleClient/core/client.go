// Package core wires the oracle node together: every component is built here,
// leaves first, and handed its dependencies explicitly.
package core

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pushchain/bridge-oracle/oracleClient/api"
	"github.com/pushchain/bridge-oracle/oracleClient/chains/svm"
	"github.com/pushchain/bridge-oracle/oracleClient/config"
	"github.com/pushchain/bridge-oracle/oracleClient/constant"
	"github.com/pushchain/bridge-oracle/oracleClient/db"
	oerrors "github.com/pushchain/bridge-oracle/oracleClient/errors"
	"github.com/pushchain/bridge-oracle/oracleClient/hub"
	"github.com/pushchain/bridge-oracle/oracleClient/hubauth"
	"github.com/pushchain/bridge-oracle/oracleClient/noncestore"
	"github.com/pushchain/bridge-oracle/oracleClient/orders"
	"github.com/pushchain/bridge-oracle/oracleClient/poller"
	"github.com/pushchain/bridge-oracle/oracleClient/processor"
	"github.com/pushchain/bridge-oracle/oracleClient/signer"
)

// loop is a background component with its own goroutine.
type loop interface {
	Start(ctx context.Context) error
	Stop()
}

type OracleClient struct {
	cfg config.Config
	log zerolog.Logger

	db        *db.DB
	rpc       *svm.RPCClient
	signer    *signer.Signer
	repo      *orders.Repository
	processor *processor.Processor
	server    *api.Server
	sweeper   *noncestore.Sweeper

	eventsPoller     *poller.Poller[*hub.EventsPage]
	signaturesPoller *poller.Poller[*hub.SignaturesPage]
	listener         *svm.EventListener // nil when disabled
}

// NewOracleClient builds every component from cfg. Unreadable or malformed
// key files are fatal.
func NewOracleClient(cfg config.Config, log zerolog.Logger) (*OracleClient, error) {
	keyRing, err := hubauth.LoadKeyRing(cfg.ResolvePath(cfg.HubKeysFile))
	if err != nil {
		return nil, err
	}
	log.Info().Int("hubs", keyRing.Len()).Msg("hub keys loaded")
	key, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.ResolvePath(cfg.OracleKeypairFile))
	if err != nil {
		return nil, oerrors.NewConfigError("failed to load oracle keypair", err)
	}
	contract, err := solana.PublicKeyFromBase58(cfg.Protocol.ContractAddress)
	if err != nil {
		return nil, oerrors.NewConfigError("invalid protocol contract address", err)
	}
	requestSigner, err := hubauth.NewRequestSigner(cfg.OracleID, cfg.OracleKid, key)
	if err != nil {
		return nil, err
	}

	database, err := db.OpenFileDB(filepath.Join(cfg.NodeHome, constant.DataSubdir), cfg.DBFileName, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	oc, err := build(cfg, log, database, keyRing, key, contract, requestSigner)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	return oc, nil
}

func build(
	cfg config.Config,
	log zerolog.Logger,
	database *db.DB,
	keyRing *hubauth.KeyRing,
	key solana.PrivateKey,
	contract solana.PublicKey,
	requestSigner *hubauth.RequestSigner,
) (*OracleClient, error) {
	rpcClient, err := svm.NewRPCClient(cfg.Solana.RPCURLs, log)
	if err != nil {
		return nil, err
	}
	validator := svm.NewEventValidator(rpcClient, svm.ValidatorConfig{
		Commitment:      cfg.Solana.Commitment,
		MaxAttempts:     cfg.Solana.ValidatorMaxAttempts,
		BaseDelay:       time.Duration(cfg.Solana.ValidatorBaseDelayMillis) * time.Millisecond,
		MaxDelay:        time.Duration(cfg.Solana.ValidatorMaxDelayMillis) * time.Millisecond,
		UseStatusLookup: cfg.Solana.ValidatorUseStatusLookup,
	}, log)

	orderSigner := signer.New(signer.Protocol{
		Name:            cfg.Protocol.Name,
		Version:         cfg.Protocol.Version,
		ContractAddress: contract,
		BpsFee:          cfg.Protocol.BpsFee,
	}, signer.StaticKey(key))

	repo := orders.NewRepository(database.Client(), log)
	proc, err := processor.New(processor.Config{
		Threshold:  cfg.SignatureThreshold,
		CursorName: constant.EventCursorName,
	}, repo, orderSigner, validator, database, log)
	if err != nil {
		return nil, err
	}

	nonces := noncestore.NewStore(database.Client(), log)
	verifier := hubauth.NewVerifier(keyRing, nonces, cfg.AuthSkew(), log)
	sweeper := noncestore.NewSweeper(noncestore.Config{
		Store:         nonces,
		CheckInterval: cfg.NonceSweepInterval(),
		Retention:     cfg.NonceRetention(),
		Logger:        log,
	})

	hubClient := hub.NewClient(requestSigner, log)
	pollerConfig := func(name string, interval time.Duration) poller.Config {
		return poller.Config{
			Name:      name,
			Primary:   cfg.PrimaryHub(),
			Fallback:  cfg.FallbackHub(),
			Interval:  interval,
			Timeout:   cfg.PollTimeout(),
			MaxJitter: cfg.PollJitter(),
		}
	}
	eventsPoller := poller.New(
		pollerConfig("hub_events", cfg.EventPollInterval()),
		func(ctx context.Context, endpoint string) (*hub.EventsPage, error) {
			return hubClient.FetchEvents(ctx, endpoint, proc.Cursor(), cfg.EventBatchLimit)
		},
		proc.OnEventsRound,
		log,
	)
	signaturesPoller := poller.New(
		pollerConfig("hub_signatures", cfg.SignaturePollInterval()),
		hubClient.FetchSignatures,
		proc.OnSignaturesRound,
		log,
	)

	var listener *svm.EventListener
	if cfg.IsListenerEnabled() {
		listener, err = svm.NewEventListener(svm.ListenerConfig{
			WSURL:          cfg.Solana.WSURL,
			ProgramAddress: cfg.Solana.ProgramAddress,
			Commitment:     cfg.Solana.Commitment,
		}, svm.DefaultDialer, proc.ListenerHandler(), log)
		if err != nil {
			return nil, err
		}
	}

	return &OracleClient{
		cfg:              cfg,
		log:              log,
		db:               database,
		rpc:              rpcClient,
		signer:           orderSigner,
		repo:             repo,
		processor:        proc,
		server:           api.NewServer(repo, verifier.Middleware, log, cfg.QueryServerPort),
		sweeper:          sweeper,
		eventsPoller:     eventsPoller,
		signaturesPoller: signaturesPoller,
		listener:         listener,
	}, nil
}

// Start runs the node until ctx is cancelled or a loop fails to start, then
// stops every loop and releases the database.
func (oc *OracleClient) Start(ctx context.Context) error {
	oc.log.Info().Msg("🚀 Starting oracle client...")

	if pub, err := oc.signer.PublicKey(); err == nil {
		oc.log.Info().Str("oracle_pubkey", pub.String()).Int("threshold", oc.cfg.SignatureThreshold).Msg("signing identity loaded")
	}

	checkCtx, cancelCheck := context.WithTimeout(ctx, 5*time.Second)
	if !oc.rpc.IsHealthy(checkCtx) {
		oc.log.Warn().Strs("rpc_urls", oc.cfg.Solana.RPCURLs).Msg("no healthy solana rpc endpoint at startup")
	}
	cancelCheck()

	if err := oc.server.Start(); err != nil {
		oc.shutdown()
		return fmt.Errorf("failed to start query server: %w", err)
	}

	// Loops get a context that outlives the shutdown signal so that Stop, not
	// cancellation, ends their in-flight work.
	loopCtx, cancelLoops := context.WithCancel(context.Background())
	defer cancelLoops()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return oc.sweeper.Run(gctx) })
	for _, l := range oc.loops() {
		l := l
		g.Go(func() error {
			if err := l.Start(loopCtx); err != nil {
				return err
			}
			<-gctx.Done()
			l.Stop()
			return nil
		})
	}

	oc.log.Info().Msg("✅ Initialization complete. Entering main loop...")
	err := g.Wait()

	oc.log.Info().Msg("🛑 Shutting down oracle client...")
	oc.shutdown()
	return err
}

func (oc *OracleClient) loops() []loop {
	loops := []loop{oc.eventsPoller, oc.signaturesPoller}
	if oc.listener != nil {
		loops = append(loops, oc.listener)
	}
	return loops
}

func (oc *OracleClient) shutdown() {
	if err := oc.server.Stop(); err != nil {
		oc.log.Error().Err(err).Msg("failed to stop query server")
	}
	oc.rpc.Close()
	if err := oc.db.Close(); err != nil {
		oc.log.Error().Err(err).Msg("failed to close database")
	}
}
