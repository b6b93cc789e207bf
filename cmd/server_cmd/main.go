package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/TEENet-io/sbtc-bridge/cmd"
	"github.com/TEENet-io/sbtc-bridge/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "BRIDGE_CONFIG"
)

func main() {
	// Environment variables override the file.
	viper.AutomaticEnv()

	// The config file is optional when everything comes from the environment.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	if _config_file != "" {
		fmt.Printf("Bridge server configuration file = %s\n", _config_file)
		if !cmd.FileExists(_config_file) {
			fmt.Printf("Bridge server configuration file not found: %s\n", _config_file)
			os.Exit(1)
		}
		viper.SetConfigFile(_config_file)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Printf("Error reading configuration file, %s\n", err)
			os.Exit(1)
		}
	}

	bsc, err := cmd.LoadBridgeServerConfig(viper.GetViper())
	if err != nil {
		fmt.Printf("Error loading bridge server configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logconfig.ConfigLogger(bsc.LogLevel, bsc.LogFormat); err != nil {
		fmt.Printf("Error configuring logger: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Starting bridge server... press Ctrl+C to kill the server")
	cmd.StartBridgeServerAndWait(bsc)
}
