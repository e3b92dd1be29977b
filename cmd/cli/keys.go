package cli

// keys.go – key management commands.
//
// Commands after RegisterKeys(root):
//   keys generate --out <file>   – new Dilithium-5 keypair
//   keys show <file>             – address and public key of a key file

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DytallixHQ/Dytallix-sub005/core"
)

// keyFile is the on-disk JSON shape of a CLI wallet key.
type keyFile struct {
	Address    string `json:"address"`
	Algorithm  string `json:"algorithm"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

func loadKeyFile(path string) (*core.Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	priv, err := base64.StdEncoding.DecodeString(kf.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return core.KeypairFromPrivateKey(priv)
}

var keysCmd = &cobra.Command{Use: "keys", Short: "Wallet key management"}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a Dilithium-5 keypair and write it to a key file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("out")
		kp, err := core.GenerateKeypair()
		if err != nil {
			return err
		}
		kf := keyFile{
			Address:    string(kp.Address()),
			Algorithm:  string(core.AlgoDilithium5),
			PublicKey:  base64.StdEncoding.EncodeToString(kp.PublicKeyBytes()),
			PrivateKey: base64.StdEncoding.EncodeToString(kp.PrivateKeyBytes()),
		}
		raw, err := json.MarshalIndent(kf, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, raw, 0o600); err != nil {
			return err
		}
		fmt.Printf("address: %s\nkey file: %s\n", kp.Address(), out)
		return nil
	},
}

var keysShowCmd = &cobra.Command{
	Use:   "show <key-file>",
	Short: "Print the address and public key of a key file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		kp, err := loadKeyFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("address: %s\npublic_key: %s\n",
			kp.Address(), base64.StdEncoding.EncodeToString(kp.PublicKeyBytes()))
		return nil
	},
}

func RegisterKeys(root *cobra.Command) {
	keysGenerateCmd.Flags().String("out", "key.json", "output key file path")
	keysCmd.AddCommand(keysGenerateCmd, keysShowCmd)
	root.AddCommand(keysCmd)
}
