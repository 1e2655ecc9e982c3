package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/newthinker/lasr-archive/archive"
	"github.com/spf13/cobra"
)

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "create <record-type>",
		Short: "Store one record and print its id",
		Long: `Store one JSON object as a record of the given type (account or
transaction_batch). The object is read from --data, or from stdin when --data is
not given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := archive.ParseRecordType(args[0])
			if err != nil {
				return err
			}

			raw := []byte(data)
			if data == "" {
				raw, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
			}

			var record map[string]any
			if err := json.Unmarshal(raw, &record); err != nil {
				return fmt.Errorf("record must be a JSON object: %w", err)
			}

			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			id, err := s.store.Create(cmd.Context(), rt, record)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "record as a JSON object")
	return cmd
}
