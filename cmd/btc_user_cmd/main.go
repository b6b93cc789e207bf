package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"github.com/TEENet-io/sbtc-bridge/cmd"
	"github.com/TEENet-io/sbtc-bridge/common"
)

const (
	ENV_CONFIG_FILE_PATH = "BTC_USER_CONFIG"
)

func main() {
	viper.AutomaticEnv()

	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("BTC user configuration file = %s\n", _config_file)

	if !cmd.FileExists(_config_file) {
		fmt.Printf("BTC user configuration file not found: %s\n", _config_file)
		return
	}

	viper.SetConfigFile(_config_file)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s\n", err)
		return
	}

	buc, err := PrepareBtcUserConfig()
	if err != nil {
		fmt.Printf("Error prepare BTC user configuration: %s\n", err)
		return
	}

	bu, err := cmd.NewBtcUser(buc, viper.GetBool("REGISTER_USER_ON_CHAIN"))
	if err != nil {
		fmt.Printf("Error creating BTC user: %s\n", err)
		return
	}
	defer bu.Close()

	fmt.Println(strings.Repeat("=", 30))
	fmt.Println("Welcome to sBTC bridge BTC user command line tool.")
	fmt.Printf("Your BTC address: %s\n", bu.Address().EncodeAddress())
	fmt.Printf("Peg wallet: %s\n", buc.PegWalletAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		_captured := <-sig
		fmt.Printf("\nReceived interrupt signal, shutting down... %v\n", _captured)
		bu.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println("What to do:")
		fmt.Println("1) View balance")
		fmt.Println("2) View recent UTXOs")
		fmt.Println("3) Send deposit to bridge")
		fmt.Println("4) Send withdrawal request to bridge")
		fmt.Println("5) Tell BTC network to mine blocks (regtest only)")
		fmt.Println("6) Send deposit to bridge via commit-reveal")
		fmt.Println("7) Send withdrawal request to bridge via commit-reveal")
		fmt.Print("Type option and press Enter: ")

		if !scanner.Scan() {
			return
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			_balance, err := bu.GetBalance()
			if err != nil {
				fmt.Printf("Error getting balance: %s\n", err)
			} else {
				fmt.Printf("Your balance: %d\n", _balance)
			}
		case "2":
			_utxos, err := bu.GetUtxos()
			if err != nil {
				fmt.Printf("Error getting UTXOs: %s\n", err)
			} else {
				for idx, _utxo := range _utxos {
					fmt.Printf("[%d]: TxId %s, vout %d, %d satoshi\n", idx, _utxo.TxHash.String(), _utxo.Vout, _utxo.Amount)
				}
			}
		case "3":
			report(sendDeposit(scanner, bu))
		case "4":
			report(sendWithdrawalRequest(scanner, bu))
		case "5":
			fmt.Println("Only use this option in local regtest mode.")
			_blks, err := bu.MineEnoughBlocks()
			if err != nil {
				fmt.Printf("Error mining blocks: %s\n", err)
			} else {
				fmt.Printf("Mined %d blocks\n", len(_blks))
			}
		case "6":
			reportCommitReveal(sendCommitRevealDeposit(scanner, bu))
		case "7":
			reportCommitReveal(sendCommitRevealWithdrawal(scanner, bu))
		default:
			fmt.Println("Unknown option, try again.")
		}
		fmt.Println()
	}
}

func PrepareBtcUserConfig() (*cmd.BtcUserConfig, error) {
	params, err := common.NetworkParams(viper.GetString("BTC_CHAIN_CONFIG"))
	if err != nil {
		return nil, err
	}
	return &cmd.BtcUserConfig{
		BtcRpcServer:       viper.GetString("BTC_RPC_SERVER"),
		BtcRpcPort:         viper.GetString("BTC_RPC_PORT"),
		BtcRpcUsername:     viper.GetString("BTC_RPC_USERNAME"),
		BtcRpcPwd:          viper.GetString("BTC_RPC_PWD"),
		BtcChainConfig:     params,
		BtcCoreAccountPriv: viper.GetString("BTC_CORE_ACCOUNT_PRIV"),
		BtcCoreAccountAddr: viper.GetString("BTC_CORE_ACCOUNT_ADDR"),
		PegWalletAddr:      viper.GetString("PEG_WALLET_ADDR"),
	}, nil
}

func report(txid string, err error) {
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		return
	}
	fmt.Printf("Sent, btc tx id: %s\n", txid)
}

func reportCommitReveal(commitID, revealID string, err error) {
	if commitID != "" {
		fmt.Printf("Sent commit, btc tx id: %s\n", commitID)
	}
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		return
	}
	fmt.Printf("Sent reveal, btc tx id: %s\n", revealID)
}

func prompt(scanner *bufio.Scanner, question string) string {
	fmt.Print(question)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

func promptInt(scanner *bufio.Scanner, question string) (int64, error) {
	v, err := strconv.ParseInt(prompt(scanner, question), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}
	return v, nil
}

func sendDeposit(scanner *bufio.Scanner, bu *cmd.BtcUser) (string, error) {
	amount, err := promptInt(scanner, "Enter amount to deposit (in satoshis): ")
	if err != nil {
		return "", err
	}
	fee, err := promptInt(scanner, "Enter Tx fee amount (in satoshis): ")
	if err != nil {
		return "", err
	}
	recipient := prompt(scanner, "Enter the Stacks principal receiving sBTC: ")
	memo := prompt(scanner, "Enter an optional memo (text): ")

	fmt.Printf("Depositing %d satoshis with a fee of %d satoshis for %s\n", amount, fee, recipient)
	return bu.DepositToBridge(amount, fee, recipient, []byte(memo))
}

func sendWithdrawalRequest(scanner *bufio.Scanner, bu *cmd.BtcUser) (string, error) {
	stacksKey := prompt(scanner, "Enter the hex private key holding the sBTC: ")
	recipient := prompt(scanner, "Enter the BTC address receiving the withdrawal: ")
	amount, err := promptInt(scanner, "Enter amount to withdraw (in satoshis): ")
	if err != nil {
		return "", err
	}
	fulfillmentFee, err := promptInt(scanner, "Enter fulfillment fee paid to the bridge (in satoshis): ")
	if err != nil {
		return "", err
	}
	fee, err := promptInt(scanner, "Enter Tx fee amount (in satoshis): ")
	if err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}

	fmt.Printf("Requesting withdrawal of %d satoshis to %s\n", amount, recipient)
	return bu.RequestWithdrawal(stacksKey, recipient, uint64(amount), fulfillmentFee, fee)
}

func sendCommitRevealDeposit(scanner *bufio.Scanner, bu *cmd.BtcUser) (string, string, error) {
	amount, err := promptInt(scanner, "Enter amount to deposit (in satoshis): ")
	if err != nil {
		return "", "", err
	}
	commitFee, err := promptInt(scanner, "Enter commit Tx fee amount (in satoshis): ")
	if err != nil {
		return "", "", err
	}
	revealFee, err := promptInt(scanner, "Enter reveal Tx fee amount (in satoshis): ")
	if err != nil {
		return "", "", err
	}
	recipient := prompt(scanner, "Enter the Stacks principal receiving sBTC: ")
	memo := prompt(scanner, "Enter an optional memo (text): ")

	fmt.Printf("Depositing %d satoshis through a commitment for %s\n", amount, recipient)
	return bu.DepositViaCommitReveal(amount, commitFee, revealFee, recipient, []byte(memo))
}

func sendCommitRevealWithdrawal(scanner *bufio.Scanner, bu *cmd.BtcUser) (string, string, error) {
	stacksKey := prompt(scanner, "Enter the hex private key holding the sBTC: ")
	recipient := prompt(scanner, "Enter the BTC address receiving the withdrawal: ")
	amount, err := promptInt(scanner, "Enter amount to withdraw (in satoshis): ")
	if err != nil {
		return "", "", err
	}
	if amount <= 0 {
		return "", "", fmt.Errorf("amount must be positive")
	}
	fulfillmentFee, err := promptInt(scanner, "Enter fulfillment fee paid to the bridge (in satoshis): ")
	if err != nil {
		return "", "", err
	}
	commitFee, err := promptInt(scanner, "Enter commit Tx fee amount (in satoshis): ")
	if err != nil {
		return "", "", err
	}
	revealFee, err := promptInt(scanner, "Enter reveal Tx fee amount (in satoshis): ")
	if err != nil {
		return "", "", err
	}

	fmt.Printf("Requesting withdrawal of %d satoshis to %s through a commitment\n", amount, recipient)
	return bu.RequestWithdrawalViaCommitReveal(stacksKey, recipient, uint64(amount), fulfillmentFee, commitFee, revealFee)
}
