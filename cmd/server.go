package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	btcrpc "github.com/TEENet-io/sbtc-bridge/btcman/rpc"
	"github.com/TEENet-io/sbtc-bridge/btcsync"
	"github.com/TEENet-io/sbtc-bridge/coordinator"
	"github.com/TEENet-io/sbtc-bridge/pegstate"
	"github.com/TEENet-io/sbtc-bridge/reporter"
	stxrpc "github.com/TEENet-io/sbtc-bridge/stacks/rpc"
	"github.com/TEENet-io/sbtc-bridge/worker"
)

// Confirmation target handed to estimatesmartfee.
const FEE_TARGET_BLOCKS = 6

type BridgeServer struct {
	config *BridgeServerConfig

	btcRpc      *btcrpc.RpcClient
	store       pegstate.Store
	closeStore  func()
	coordinator *coordinator.Coordinator
	reporter    *reporter.HttpReporter
}

// NewBridgeServer connects to both chains, restores the peg state from the
// configured store and assembles the coordinator, worker and http reporter.
func NewBridgeServer(bsc *BridgeServerConfig) (*BridgeServer, error) {
	btcRpc, err := SetupBtcRpc(bsc.BtcRpcServer, bsc.BtcRpcPort, bsc.BtcRpcUsername, bsc.BtcRpcPwd)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(bsc)
	if err != nil {
		btcRpc.Close()
		return nil, err
	}

	srv := &BridgeServer{
		config:     bsc,
		btcRpc:     btcRpc,
		store:      store,
		closeStore: closeStore,
	}
	if err := srv.assemble(); err != nil {
		srv.Close()
		return nil, err
	}
	return srv, nil
}

func openStore(bsc *BridgeServerConfig) (pegstate.Store, func(), error) {
	switch bsc.StoreBackend {
	case STORE_REDIS:
		st := pegstate.NewRedisStore(bsc.RedisAddr)
		return st, func() { st.Close() }, nil
	default:
		db, err := sql.Open("sqlite3", bsc.DbFilePath)
		if err != nil {
			return nil, nil, err
		}
		st, err := pegstate.NewSQLStore(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return st, func() {
			st.Close()
			db.Close()
		}, nil
	}
}

func (s *BridgeServer) assemble() error {
	bsc := s.config

	state, err := pegstate.LoadState(context.Background(), s.store)
	if err != nil {
		return fmt.Errorf("failed to load peg state: %w", err)
	}
	logger.WithField("kind", state.Kind()).Info("peg state loaded")

	scanner := btcsync.NewScanner(bsc.PegWalletAddr, bsc.BtcChainConfig)
	machine := pegstate.New(&pegstate.Config{Strict: bsc.Strict}, scanner, state)

	stx := stxrpc.NewClient(&stxrpc.ClientConfig{URL: bsc.StacksApiUrl})

	var fee worker.FeeEstimator = worker.FixedRate{SatPerVByte: bsc.FeeRate}
	if bsc.FeeRate <= 0 {
		fee = worker.NodeRate{
			Node:     s.btcRpc,
			Target:   FEE_TARGET_BLOCKS,
			Fallback: worker.FixedRate{SatPerVByte: worker.DefaultFallbackRate},
		}
	}

	w, err := worker.New(&worker.Config{
		ChainConfig:  bsc.BtcChainConfig,
		PegWalletWIF: bsc.PegWalletPriv,
		PegWallet:    bsc.PegWalletAddr,
		StacksKey:    bsc.StacksKey,
		Contract:     bsc.StacksContract,
		StacksTxFee:  bsc.StacksTxFee,
		Fee:          fee,
		PollInterval: bsc.PollInterval,
	}, s.btcRpc, stx)
	if err != nil {
		return err
	}

	s.coordinator, err = coordinator.New(&coordinator.Config{ChannelSize: bsc.ChannelSize}, machine, s.store, w)
	if err != nil {
		return err
	}

	s.reporter = reporter.NewHttpReporter(bsc.HttpIp, bsc.HttpPort, s.coordinator)
	return nil
}

// Run blocks until ctx is canceled or a component fails.
func (s *BridgeServer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.coordinator.Run(ctx)
	})
	g.Go(func() error {
		return s.reporter.Run(ctx)
	})
	return g.Wait()
}

func (s *BridgeServer) Close() {
	if s.closeStore != nil {
		s.closeStore()
	}
	s.btcRpc.Close()
}

// StartBridgeServerAndWait runs the bridge until SIGINT or SIGTERM.
func StartBridgeServerAndWait(bsc *BridgeServerConfig) {
	srv, err := NewBridgeServer(bsc)
	if err != nil {
		logger.Fatalf("failed to create bridge server: %v", err)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logger.Fields{
		"chain":    bsc.BtcChainConfig.Name,
		"peg":      bsc.PegWalletAddr.EncodeAddress(),
		"contract": bsc.StacksContract.String(),
		"store":    bsc.StoreBackend,
	}).Info("bridge server started")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("bridge server stopped: %v", err)
		return
	}
	logger.Info("bridge server stopped")
}
