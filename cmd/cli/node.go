package cli

// node.go – local node maintenance commands that operate directly on the
// data directory, without a running rpcd.
//
// Commands after RegisterNode(root):
//   node migrate-legacy – one-way sweep of legacy single-denom balances
//   node status         – print the stored chain tip

import (
	"fmt"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cmdconfig "github.com/DytallixHQ/Dytallix-sub005/cmd/config"
	"github.com/DytallixHQ/Dytallix-sub005/core"
)

var (
	nodeStorage *core.Storage
	nodeOnce    sync.Once
	nodeInitErr error
)

// nodeInit opens storage from the configured data directory exactly
// once across all node subcommands in a single CLI invocation.
func nodeInit(_ *cobra.Command, _ []string) error {
	nodeOnce.Do(func() {
		_ = godotenv.Load()
		cmdconfig.LoadConfig()
		log := logrus.New()
		if lv, err := logrus.ParseLevel(cmdconfig.AppConfig.LogLevel); err == nil {
			log.SetLevel(lv)
		}
		nodeStorage, nodeInitErr = core.OpenStorage(cmdconfig.AppConfig.DataDir, log)
	})
	return nodeInitErr
}

var nodeCmd = &cobra.Command{Use: "node", Short: "Local node maintenance", PersistentPreRunE: nodeInit}

var nodeMigrateCmd = &cobra.Command{
	Use:   "migrate-legacy",
	Short: "Migrate legacy single-denom balances to the multi-denom keyspace",
	RunE: func(cmd *cobra.Command, _ []string) error {
		defer nodeStorage.Close()
		n, err := nodeStorage.MigrateLegacyBalances(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("migrated %d legacy balance records\n", n)
		return nil
	},
}

var nodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the stored chain tip",
	RunE: func(_ *cobra.Command, _ []string) error {
		defer nodeStorage.Close()
		height, err := nodeStorage.GetHeight()
		if err != nil {
			return err
		}
		best, err := nodeStorage.GetBestHash()
		if err != nil {
			return err
		}
		chainID, err := nodeStorage.GetChainID()
		if err != nil {
			return err
		}
		fmt.Printf("chain_id: %s\nheight: %d\nbest_hash: %s\n", chainID, height, best.Hex())
		return nil
	},
}

func RegisterNode(root *cobra.Command) {
	nodeCmd.AddCommand(nodeMigrateCmd, nodeStatusCmd)
	root.AddCommand(nodeCmd)
}
