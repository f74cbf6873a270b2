package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newNormalizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [text...]",
		Short: "Print the canonical form of Arabic text",
		Long:  "Normalizes the arguments joined by spaces, or each line of stdin when no arguments are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := ctx.textNormalizer()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				fmt.Fprintln(out, n.Normalize(strings.Join(args, " ")))
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 64*1024), 1<<20)
			for scanner.Scan() {
				fmt.Fprintln(out, n.Normalize(scanner.Text()))
			}
			return scanner.Err()
		},
	}
}
