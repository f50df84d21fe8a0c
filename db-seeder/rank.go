package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
)

func rankCmd() *cobra.Command {
	var (
		limit     int
		anyVector bool
	)
	cmd := &cobra.Command{
		Use:   "rank <username>",
		Short: "Print the users closest to username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, ctx, cancel, err := openPostgres(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer pg.Close()

			policy := similarity.PolicyInterviewedOnly
			if anyVector {
				policy = similarity.PolicyAnyVector
			}
			matches, err := similarity.NewRanker(pg, policy).Rank(ctx, args[0])
			if err != nil {
				return errors.Annotatef(err, "rank %q", args[0])
			}
			return printMatches(cmd.OutOrStdout(), matches, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Rows to print, 0 for all")
	cmd.Flags().BoolVar(&anyVector, "any-vector", false, "Also rank users with ratings who are not marked interviewed")
	return cmd
}

func printMatches(w io.Writer, matches []similarity.Match, limit int) error {
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Username", "Distance")
	for i, m := range matches {
		if err := table.Append([]string{strconv.Itoa(i + 1), m.Username, fmt.Sprintf("%.3f", m.Distance)}); err != nil {
			return errors.Trace(err)
		}
	}
	return table.Render()
}
