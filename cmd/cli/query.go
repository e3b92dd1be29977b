package cli

// query.go – read-only queries against a running node's RPC endpoint.
//
// Commands after RegisterQuery(root):
//   query balance <addr>   query nonce <addr>
//   query block <height>   query receipt <hash>   query stats

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func queryGet(cmd *cobra.Command, path string) error {
	nodeURL, _ := cmd.Flags().GetString("node")
	resp, err := http.Get(nodeURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s\n", strings.TrimSpace(string(body)))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

var queryCmd = &cobra.Command{Use: "query", Short: "Query a running node"}

var queryBalanceCmd = &cobra.Command{
	Use:  "balance <addr>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return queryGet(cmd, "/api/balance/"+args[0])
	},
}

var queryNonceCmd = &cobra.Command{
	Use:  "nonce <addr>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return queryGet(cmd, "/api/nonce/"+args[0])
	},
}

var queryBlockCmd = &cobra.Command{
	Use:  "block <height>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return queryGet(cmd, "/api/block/height/"+args[0])
	},
}

var queryReceiptCmd = &cobra.Command{
	Use:  "receipt <tx-hash>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return queryGet(cmd, "/api/receipt/"+args[0])
	},
}

var queryStatsCmd = &cobra.Command{
	Use:  "stats",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return queryGet(cmd, "/api/stats")
	},
}

func RegisterQuery(root *cobra.Command) {
	queryCmd.PersistentFlags().String("node", "http://127.0.0.1:8545", "node RPC base URL")
	queryCmd.AddCommand(queryBalanceCmd, queryNonceCmd, queryBlockCmd, queryReceiptCmd, queryStatsCmd)
	root.AddCommand(queryCmd)
}
