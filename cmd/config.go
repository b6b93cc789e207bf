package cmd

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"

	"github.com/TEENet-io/sbtc-bridge/common"
	"github.com/TEENet-io/sbtc-bridge/stacks"
)

// Configuration keys. Each is read from the config file or from an
// environment variable of the same name.
const (
	KEY_BTC_RPC_SERVER   = "BTC_RPC_SERVER"
	KEY_BTC_RPC_PORT     = "BTC_RPC_PORT"
	KEY_BTC_RPC_USERNAME = "BTC_RPC_USERNAME"
	KEY_BTC_RPC_PWD      = "BTC_RPC_PWD"
	KEY_BTC_CHAIN_CONFIG = "BTC_CHAIN_CONFIG"
	KEY_PEG_WALLET_PRIV  = "PEG_WALLET_PRIV"
	KEY_PEG_WALLET_ADDR  = "PEG_WALLET_ADDR"
	KEY_STACKS_API_URL   = "STACKS_API_URL"
	KEY_STACKS_PRIV      = "STACKS_PRIV"
	KEY_STACKS_CONTRACT  = "STACKS_CONTRACT"
	KEY_STACKS_TX_FEE    = "STACKS_TX_FEE"
	KEY_FEE_RATE         = "FEE_RATE"
	KEY_STORE_BACKEND    = "STORE_BACKEND"
	KEY_DB_FILE_PATH     = "DB_FILE_PATH"
	KEY_REDIS_ADDR       = "REDIS_ADDR"
	KEY_HTTP_IP          = "HTTP_IP"
	KEY_HTTP_PORT        = "HTTP_PORT"
	KEY_STRICT           = "STRICT"
	KEY_LOG_LEVEL        = "LOG_LEVEL"
	KEY_LOG_FORMAT       = "LOG_FORMAT"
	KEY_CHANNEL_SIZE     = "CHANNEL_SIZE"
	KEY_POLL_INTERVAL    = "POLL_INTERVAL"
)

const (
	STORE_SQLITE = "sqlite"
	STORE_REDIS  = "redis"
)

// Keep the configuration's fields as "text" as possible.
// Only values that must be validated up front are parsed here.
type BridgeServerConfig struct {
	// btc side
	BtcRpcServer   string           // btc rpc server info
	BtcRpcPort     string           // btc rpc server info
	BtcRpcUsername string           // btc rpc server info
	BtcRpcPwd      string           // btc rpc server info
	BtcChainConfig *chaincfg.Params // regtest, testnet, signet, mainnet
	PegWalletPriv  string           // WIF of the peg wallet
	PegWalletAddr  btcutil.Address  // receives deposits
	FeeRate        int64            // sat/vB, 0 = ask the node

	// stacks side
	StacksApiUrl   string
	StacksKey      *btcec.PrivateKey
	StacksContract stacks.Principal
	StacksTxFee    uint64

	// state side
	StoreBackend string // sqlite | redis
	DbFilePath   string
	RedisAddr    string
	Strict       bool
	ChannelSize  int
	PollInterval time.Duration

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080

	LogLevel  string
	LogFormat string // text | json
}

// LoadBridgeServerConfig reads and validates the server configuration.
func LoadBridgeServerConfig(v *viper.Viper) (*BridgeServerConfig, error) {
	v.SetDefault(KEY_BTC_CHAIN_CONFIG, "regtest")
	v.SetDefault(KEY_STORE_BACKEND, STORE_SQLITE)
	v.SetDefault(KEY_STACKS_TX_FEE, 10_000)
	v.SetDefault(KEY_HTTP_IP, "0.0.0.0")
	v.SetDefault(KEY_HTTP_PORT, "8080")
	v.SetDefault(KEY_LOG_LEVEL, "info")
	v.SetDefault(KEY_POLL_INTERVAL, "10s")

	params, err := common.NetworkParams(v.GetString(KEY_BTC_CHAIN_CONFIG))
	if err != nil {
		return nil, err
	}

	pegAddr, err := btcutil.DecodeAddress(v.GetString(KEY_PEG_WALLET_ADDR), params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KEY_PEG_WALLET_ADDR, err)
	}
	if !pegAddr.IsForNet(params) {
		return nil, fmt.Errorf("%s: %s is not a %s address", KEY_PEG_WALLET_ADDR, pegAddr, params.Name)
	}

	stacksKey, err := parseStacksKey(v.GetString(KEY_STACKS_PRIV))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KEY_STACKS_PRIV, err)
	}

	contract, err := stacks.ParsePrincipal(v.GetString(KEY_STACKS_CONTRACT))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KEY_STACKS_CONTRACT, err)
	}
	if !contract.IsContract() {
		return nil, fmt.Errorf("%s: %s is not a contract", KEY_STACKS_CONTRACT, contract)
	}

	backend := v.GetString(KEY_STORE_BACKEND)
	switch backend {
	case STORE_SQLITE:
		if v.GetString(KEY_DB_FILE_PATH) == "" {
			return nil, fmt.Errorf("%s is required by the sqlite store", KEY_DB_FILE_PATH)
		}
	case STORE_REDIS:
		if v.GetString(KEY_REDIS_ADDR) == "" {
			return nil, fmt.Errorf("%s is required by the redis store", KEY_REDIS_ADDR)
		}
	default:
		return nil, fmt.Errorf("%s: unknown backend %q", KEY_STORE_BACKEND, backend)
	}

	return &BridgeServerConfig{
		BtcRpcServer:   v.GetString(KEY_BTC_RPC_SERVER),
		BtcRpcPort:     v.GetString(KEY_BTC_RPC_PORT),
		BtcRpcUsername: v.GetString(KEY_BTC_RPC_USERNAME),
		BtcRpcPwd:      v.GetString(KEY_BTC_RPC_PWD),
		BtcChainConfig: params,
		PegWalletPriv:  v.GetString(KEY_PEG_WALLET_PRIV),
		PegWalletAddr:  pegAddr,
		FeeRate:        v.GetInt64(KEY_FEE_RATE),

		StacksApiUrl:   v.GetString(KEY_STACKS_API_URL),
		StacksKey:      stacksKey,
		StacksContract: contract,
		StacksTxFee:    v.GetUint64(KEY_STACKS_TX_FEE),

		StoreBackend: backend,
		DbFilePath:   v.GetString(KEY_DB_FILE_PATH),
		RedisAddr:    v.GetString(KEY_REDIS_ADDR),
		Strict:       v.GetBool(KEY_STRICT),
		ChannelSize:  v.GetInt(KEY_CHANNEL_SIZE),
		PollInterval: v.GetDuration(KEY_POLL_INTERVAL),

		HttpIp:   v.GetString(KEY_HTTP_IP),
		HttpPort: v.GetString(KEY_HTTP_PORT),

		LogLevel:  v.GetString(KEY_LOG_LEVEL),
		LogFormat: v.GetString(KEY_LOG_FORMAT),
	}, nil
}
