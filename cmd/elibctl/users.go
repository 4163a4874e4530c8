package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List and manage accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.users.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(users)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "UID\tUSERNAME\tVERIFIED\tTEMP PASSWORD")
			for _, u := range users {
				temp := "-"
				if u.TemporaryPassExpirationDate != nil {
					temp = "until " + u.TemporaryPassExpirationDate.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", u.UID, u.Username, u.IsVerified, temp)
			}
			return tw.Flush()
		},
	})

	var unverify bool
	verify := &cobra.Command{
		Use:   "verify <username>",
		Short: "Approve an account (or suspend it with --revoke)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.userRepo.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			u, err = a.users.SetVerified(cmd.Context(), u.UID, !unverify)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s verified=%t\n", u.Username, u.IsVerified)
			return nil
		},
	}
	verify.Flags().BoolVar(&unverify, "revoke", false, "mark the account unverified instead")
	cmd.AddCommand(verify)

	cmd.AddCommand(&cobra.Command{
		Use:   "reset-password <username>",
		Short: "Issue a temporary password valid for 24 hours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reset, err := a.users.RequestPasswordReset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(reset)
			}
			fmt.Fprintf(a.out, "temporary password for %s: %s (expires %s)\n",
				reset.Username, reset.TemporaryPassword, reset.ExpiresAt.Format("2006-01-02 15:04 MST"))
			return nil
		},
	})

	return cmd
}
