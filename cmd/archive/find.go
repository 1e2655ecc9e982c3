package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/newthinker/lasr-archive/archive"
	"github.com/spf13/cobra"
)

func newFindCmd(opts *rootOptions) *cobra.Command {
	var (
		where   []string
		lenient bool
	)

	cmd := &cobra.Command{
		Use:   "find <record-type>",
		Short: "Print every record of a type as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := archive.ParseRecordType(args[0])
			if err != nil {
				return err
			}
			filter, err := parseWhere(where)
			if err != nil {
				return err
			}

			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			find := archive.FindAll[map[string]any]
			if lenient {
				find = archive.FindAllLenient[map[string]any]
			}
			records, err := find(cmd.Context(), s.store, rt, archive.WithFilter(filter))

			var skipped *archive.DecodeErrors
			if err != nil && !(lenient && errors.As(err, &skipped)) {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range records {
				if err := enc.Encode(r); err != nil {
					return fmt.Errorf("writing record: %w", err)
				}
			}
			if skipped != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %v\n", skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&where, "where", nil, "equality filter key=value; value is parsed as JSON when possible (repeatable)")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "skip records that fail to decode instead of failing")
	return cmd
}

// parseWhere turns key=value pairs into a filter. Values that parse as JSON keep
// their JSON type, so n=3 matches the number 3 and n="3" the string.
func parseWhere(pairs []string) (archive.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	f := make(archive.Filter, len(pairs))
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --where %q: expected key=value", p)
		}
		var v any
		if err := json.Unmarshal([]byte(val), &v); err != nil {
			v = val
		}
		f[key] = v
	}
	return f, nil
}
