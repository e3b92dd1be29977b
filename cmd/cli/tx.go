package cli

// tx.go – transaction build/sign/submit commands.
//
// Commands after RegisterTx(root):
//   tx send – sign a Send and submit it to a node's RPC endpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/DytallixHQ/Dytallix-sub005/core"
)

var txCmd = &cobra.Command{Use: "tx", Short: "Build, sign and submit transactions"}

var txSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and submit a single-denom transfer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		keyPath, _ := cmd.Flags().GetString("key")
		to, _ := cmd.Flags().GetString("to")
		amountStr, _ := cmd.Flags().GetString("amount")
		denom, _ := cmd.Flags().GetString("denom")
		memo, _ := cmd.Flags().GetString("memo")
		nonce, _ := cmd.Flags().GetUint64("nonce")
		gasLimit, _ := cmd.Flags().GetUint64("gas-limit")
		gasPrice, _ := cmd.Flags().GetUint64("gas-price")
		chainID, _ := cmd.Flags().GetString("chain-id")
		nodeURL, _ := cmd.Flags().GetString("node")

		kp, err := loadKeyFile(keyPath)
		if err != nil {
			return err
		}
		amount, err := core.AmountFromDecimal(amountStr)
		if err != nil {
			return err
		}
		fee := core.AmountFromUint64(gasLimit * gasPrice)

		tx := &core.Transaction{
			ChainID: chainID,
			Nonce:   nonce,
			Msgs: []core.Msg{core.SendMsg{
				From:   kp.Address(),
				To:     core.Address(to),
				Denom:  core.Denom(denom),
				Amount: amount,
			}},
			Fee:  fee,
			Memo: memo,
		}
		stx, err := kp.SignTransaction(tx, gasLimit, gasPrice)
		if err != nil {
			return err
		}

		body, err := json.Marshal(stx)
		if err != nil {
			return err
		}
		resp, err := http.Post(nodeURL+"/api/tx", "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		out, _ := io.ReadAll(resp.Body)
		fmt.Printf("%s\n", bytes.TrimSpace(out))
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("submit rejected: HTTP %d", resp.StatusCode)
		}
		return nil
	},
}

func RegisterTx(root *cobra.Command) {
	f := txSendCmd.Flags()
	f.String("key", "key.json", "sender key file")
	f.String("to", "", "recipient address")
	f.String("amount", "0", "transfer amount (base units)")
	f.String("denom", string(core.DefaultDenom), "transfer denomination")
	f.String("memo", "", "transaction memo")
	f.Uint64("nonce", 0, "sender nonce")
	f.Uint64("gas-limit", 25000, "gas limit")
	f.Uint64("gas-price", 1000, "gas price")
	f.String("chain-id", "dyt-local-1", "target chain id")
	f.String("node", "http://127.0.0.1:8545", "node RPC base URL")
	_ = txSendCmd.MarkFlagRequired("to")
	txCmd.AddCommand(txSendCmd)
	root.AddCommand(txCmd)
}
