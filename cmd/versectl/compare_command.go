package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quranlocator/verse-engine/internal/corpus"
)

type compareOutput struct {
	Total      int                 `json:"total"`
	Matches    int                 `json:"matches"`
	Rate       float64             `json:"rate"`
	Mismatches []compareMismatchJS `json:"mismatches"`
}

type compareMismatchJS struct {
	Index int      `json:"index"`
	A     string   `json:"a"`
	B     string   `json:"b"`
	Ops   []string `json:"ops"`
}

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var formatA, formatB string
	var limit int

	cmd := &cobra.Command{
		Use:   "compare <corpus-a> <corpus-b>",
		Short: "Compare two corpora verse by verse after normalization",
		Long: "Walks both corpora in load order and lists every position whose normalized texts differ, " +
			"with the differing code points named.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := ctx.textNormalizer()
			if err != nil {
				return err
			}

			load := func(path, format string) (*corpus.Corpus, error) {
				f, err := corpus.ParseFormat(format)
				if err != nil {
					return nil, err
				}
				c, err := corpus.Load(cmd.Context(), corpus.Source{Path: path, Format: f}, corpus.WithNormalizer(n))
				if err != nil {
					return nil, err
				}
				return c, corpus.Require(c)
			}

			a, err := load(args[0], formatA)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			b, err := load(args[1], formatB)
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}

			cmp := corpus.Compare(a, b)
			out := compareOutput{Total: cmp.Total, Matches: cmp.Matches, Rate: cmp.Rate()}
			for i, m := range cmp.Mismatches {
				if limit > 0 && i >= limit {
					break
				}
				mm := compareMismatchJS{Index: m.Index, A: m.A.Key().String(), B: m.B.Key().String()}
				for _, op := range m.Ops {
					mm.Ops = append(mm.Ops, describeOp(op))
				}
				out.Mismatches = append(out.Mismatches, mm)
			}

			if ctx.flags.json {
				return writeJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, renderTable([]string{"Compared", "Matching", "Rate"}, [][]string{{
				strconv.Itoa(out.Total),
				strconv.Itoa(out.Matches),
				fmt.Sprintf("%.2f%%", out.Rate*100),
			}}, []columnAlignment{alignRight, alignRight, alignRight}))

			if len(out.Mismatches) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(out.Mismatches))
			for _, m := range out.Mismatches {
				rows = append(rows, []string{strconv.Itoa(m.Index), m.A, m.B, strings.Join(m.Ops, "\n")})
			}
			fmt.Fprintln(w, renderTable([]string{"Index", "A", "B", "Differences"}, rows, []columnAlignment{alignRight}))
			if limit > 0 && len(cmp.Mismatches) > limit {
				fmt.Fprintf(w, "%d more mismatches not shown\n", len(cmp.Mismatches)-limit)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&formatA, "format-a", "auto", "Format of the first corpus")
	cmd.Flags().StringVar(&formatB, "format-b", "auto", "Format of the second corpus")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum mismatches to list (0 for all)")
	return cmd
}

func describeOp(op corpus.DiffOp) string {
	describe := func(runes []rune) string {
		parts := make([]string, len(runes))
		for i, r := range runes {
			parts[i] = corpus.DescribeRune(r)
		}
		return strings.Join(parts, ", ")
	}

	switch op.Kind {
	case corpus.OpInsert:
		return fmt.Sprintf("insert @%d: %s", op.B1, describe(op.B))
	case corpus.OpDelete:
		return fmt.Sprintf("delete @%d: %s", op.A1, describe(op.A))
	default:
		return fmt.Sprintf("replace @%d: %s -> %s", op.A1, describe(op.A), describe(op.B))
	}
}
