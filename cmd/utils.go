package cmd

import (
	"os"

	logger "github.com/sirupsen/logrus"

	btcrpc "github.com/TEENet-io/sbtc-bridge/btcman/rpc"
)

// FileExists reports whether filePath names a regular file.
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	return err == nil && info.Mode().IsRegular()
}

// SetupBtcRpc connects to a bitcoin core node.
func SetupBtcRpc(server string, port string, username string, password string) (*btcrpc.RpcClient, error) {
	r, err := btcrpc.NewRpcClient(&btcrpc.RpcClientConfig{
		ServerAddr: server,
		Port:       port,
		Username:   username,
		Pwd:        password,
	})
	if err != nil {
		logger.WithFields(logger.Fields{
			"server": server,
			"port":   port,
		}).Errorf("failed to create btc rpc client: %v", err)
		return nil, err
	}
	return r, nil
}
