package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens <count>",
	Short: "Issue one-time finalist tokens",
	Long: `Issue finalist tokens and print their codes, one per line. Only hashes are
stored, so this output is the only copy of the codes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := strconv.Atoi(args[0])
		if err != nil || count < 1 || count > 10000 {
			return errors.New("count must be between 1 and 10000")
		}

		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		digits, _ := cmd.Flags().GetInt("digits")
		if digits == 0 {
			digits = e.cfg.TokenDigits
		}
		issued, err := e.engine.IssueTokens(ctx, count, digits)
		for _, tok := range issued {
			fmt.Fprintln(cmd.OutOrStdout(), tok.Code)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.Flags().Int("digits", 0, "code length (default $TOKEN_DIGITS)")
}
