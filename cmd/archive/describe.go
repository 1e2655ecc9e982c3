package main

import (
	"fmt"

	"github.com/newthinker/lasr-archive/archive"
	"github.com/spf13/cobra"
)

func newDescribeCmd(opts *rootOptions) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the configured store with credentials redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			var dopts []archive.DescribeOption
			if reveal {
				dopts = append(dopts, archive.RevealCredentials())
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.store.Describe(dopts...))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "print the URI including credentials")
	return cmd
}
