package main

import (
	"fmt"

	"github.com/osvaldoandrade/zumo/pkg/auth"
	"github.com/spf13/cobra"
)

func userIDCmd(ui *ui) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "userid",
		Short: "Format and parse provider:id user ids",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "format <provider> [id]",
		Short: "Join a provider name and provider id",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id *string
			if len(args) == 2 {
				id = &args[1]
			}
			uid, err := auth.FormatUserID(args[0], id)
			if err != nil {
				return err
			}
			fmt.Println(uid)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "parse <userId>",
		Short: "Split a user id into provider and id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, id, ok := auth.ParseUserID(args[0])
			if !ok {
				return fmt.Errorf("%q is not a provider:id user id", args[0])
			}
			fmt.Printf("%s %s\n%s %s\n", ui.info("provider"), provider, ui.info("id      "), id)
			return nil
		},
	})
	return cmd
}
