package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/service"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/storage"
)

func newEbooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ebooks",
		Short: "Inspect the catalogue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List ebook metadata (file contents are not read)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ebooks, err := a.ebooks.List(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(ebooks)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tFILE\tBYTES\tPAGES")
			for _, e := range ebooks {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", e.ID, e.Title, e.Author, e.FileName, e.FileSize, e.PageCount)
			}
			return tw.Flush()
		},
	})

	return cmd
}

var errUnhealthy = errors.New("library has problems")

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the document for broken references and missing files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := service.Diagnose(cmd.Context(), a.docs, func(name string) bool {
				path, err := a.files.Path(name)
				return err == nil && storage.Exists(path)
			})
			if err != nil {
				return err
			}

			if a.asJSON {
				if err := a.printJSON(report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(a.out, "users: %d  ebooks: %d  reading records: %d\n",
					report.Users, report.Ebooks, report.Collections)
				if report.LoggedIn != "" {
					fmt.Fprintf(a.out, "logged in: %s\n", report.LoggedIn)
				}
				for _, p := range report.Problems {
					fmt.Fprintf(a.out, "[%s] %s\n", p.Kind, p.Detail)
				}
				if report.Healthy() {
					fmt.Fprintln(a.out, "ok")
				}
			}

			if !report.Healthy() {
				return fmt.Errorf("%w: %d found", errUnhealthy, len(report.Problems))
			}
			return nil
		},
	}
}
