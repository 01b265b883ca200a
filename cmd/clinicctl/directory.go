package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPatientsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patients",
		Short:   "List and register patients",
		Aliases: []string{"patient"},
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "List patients by name",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patients, err := a.svc.ListPatients(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, p := range patients {
				fmt.Fprintf(w, "%d\t%s\n", p.ID, p.Name)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Register a patient",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.svc.AddPatient(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added patient %d: %s\n", p.ID, p.Name)
			return nil
		},
	})

	return cmd
}

func newDoctorsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "doctors",
		Short:   "List and register doctors",
		Aliases: []string{"doctor"},
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "List doctors by name",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doctors, err := a.svc.ListDoctors(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSPECIALIZATION")
			for _, d := range doctors {
				fmt.Fprintf(w, "%d\t%s\t%s\n", d.ID, d.Name, d.Specialization)
			}
			return w.Flush()
		},
	})

	var specialization string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a doctor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.svc.AddDoctor(cmd.Context(), strings.Join(args, " "), specialization)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added doctor %d: %s (%s)\n", d.ID, d.Name, d.Specialization)
			return nil
		},
	}
	add.Flags().StringVarP(&specialization, "specialization", "s", "", "doctor specialization")
	cmd.AddCommand(add)

	return cmd
}
