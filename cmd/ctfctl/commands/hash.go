package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/config"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
)

var hashFlagCmd = &cobra.Command{
	Use:   "hash-flag <flag>",
	Short: "Print the stored hash of a flag",
	Long: `Hash a flag the way the server stores it, for seeding challenges by hand.
Surrounding whitespace is trimmed, as it is on submission.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		algo, _ := cmd.Flags().GetString("algo")
		if algo == "" {
			algo = cfg.HashAlgo
		}
		hasher, err := security.New(algo, cfg.BcryptCost)
		if err != nil {
			return err
		}
		hash, err := hasher.Hash(strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashFlagCmd)
	hashFlagCmd.Flags().String("algo", "", "bcrypt or argon2id (default $HASH_ALGO)")
}
