package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultik/vaultik/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "vaultik",
	Short: "Vaultik - A CLI for encrypting file vaults with passphrase and YubiKey keys.",
	Long: `Vaultik seals sets of files into encrypted vaults that any one of several
registered keys can open: a passphrase-protected key, a YubiKey, or both.

Features:
  - Encrypt a vault for every attached key at once, so losing one key never locks you out
  - Provision YubiKeys and adopt identities created on other machines
  - Verify restored files against the manifest recorded at encryption time

Usage:
  vaultik <command> [flags]

Available Commands:
  keys       Manage the keys that unlock your vaults
  vault      Manage vaults and their encrypted payloads
  yubikey    Manage YubiKey hardware keys

Run 'vaultik help <command>' for more details on a specific command.
`,
	Run: func(c *cobra.Command, args []string) {
		fmt.Println("Welcome to Vaultik! Run 'vaultik --help' to see available commands.")
	},
}

func main() {
	rootCmd.AddCommand(cmd.KeysCmd)
	rootCmd.AddCommand(cmd.VaultCmd)
	rootCmd.AddCommand(cmd.YubikeyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
