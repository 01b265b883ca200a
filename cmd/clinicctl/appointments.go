package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

func newAppointmentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Short:   "Book, reschedule and cancel appointments",
		Aliases: []string{"appt", "appointment"},
	}

	cmd.AddCommand(
		newListAppointmentsCmd(a),
		newBookCmd(a),
		newUpdateCmd(a),
		newCancelCmd(a),
		newCheckCmd(a),
		newShowCmd(a),
		newSummaryCmd(a),
	)

	return cmd
}

// slotFlags are the form fields shared by book, update and check.
type slotFlags struct {
	patientID int64
	doctorID  int64
	date      string
	time      string
	status    string
}

func (f *slotFlags) register(cmd *cobra.Command, withPatient, withStatus bool) {
	if withPatient {
		cmd.Flags().Int64VarP(&f.patientID, "patient", "p", 0, "patient id")
	}
	cmd.Flags().Int64VarP(&f.doctorID, "doctor", "d", 0, "doctor id")
	cmd.Flags().StringVar(&f.date, "date", "", "appointment date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.time, "time", "", "appointment time (HH:MM)")
	if withStatus {
		cmd.Flags().StringVar(&f.status, "status", "", "Scheduled, Completed, Cancelled or No Show")
	}
}

func (f *slotFlags) parse() (appointment.Date, appointment.ClockTime, appointment.AppointmentStatus, error) {
	date, err := appointment.ParseDate(f.date)
	if err != nil {
		return appointment.Date{}, appointment.ClockTime{}, "", err
	}
	tm, err := appointment.ParseClockTime(f.time)
	if err != nil {
		return appointment.Date{}, appointment.ClockTime{}, "", err
	}
	var status appointment.AppointmentStatus
	if f.status != "" {
		if status, err = appointment.ParseStatus(f.status); err != nil {
			return appointment.Date{}, appointment.ClockTime{}, "", err
		}
	}
	return date, tm, status, nil
}

func newListAppointmentsCmd(a *app) *cobra.Command {
	var (
		f    appointment.ListFilter
		date string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments, newest date first",
		Long: `List appointments ordered by date descending, then time ascending.

Examples:
  clinicctl appointments list
  clinicctl appointments list --query cardio
  clinicctl appointments list --doctor 3 --date 2025-03-01`,
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if date != "" {
				d, err := appointment.ParseDate(date)
				if err != nil {
					return err
				}
				f.Date = &d
			}

			appointments, err := a.svc.ListAppointments(cmd.Context(), f)
			if err != nil {
				return err
			}
			if len(appointments) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No appointments found.")
				return nil
			}
			return printAppointments(cmd.OutOrStdout(), appointments)
		},
	}

	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "match patient name, doctor name or status")
	cmd.Flags().Int64VarP(&f.DoctorID, "doctor", "d", 0, "only this doctor")
	cmd.Flags().Int64VarP(&f.PatientID, "patient", "p", 0, "only this patient")
	cmd.Flags().StringVar(&date, "date", "", "only this date (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&f.Limit, "limit", "n", 0, "maximum rows (default 100)")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "rows to skip")

	return cmd
}

func newBookCmd(a *app) *cobra.Command {
	var f slotFlags

	cmd := &cobra.Command{
		Use:     "book",
		Short:   "Book an appointment if the doctor is free",
		Example: `  clinicctl appointments book --patient 1 --doctor 2 --date 2025-03-01 --time 09:00`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, tm, status, err := f.parse()
			if err != nil {
				return err
			}

			appt, err := a.svc.BookAppointment(cmd.Context(), appointment.BookRequest{
				PatientID: f.patientID,
				DoctorID:  f.doctorID,
				Date:      date,
				Time:      tm,
				Status:    status,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Booked appointment %d on %s at %s (%s)\n",
				appt.ID, appt.Date, appt.Time, appt.Status)
			return nil
		},
	}
	f.register(cmd, true, true)

	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var f slotFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Rewrite an appointment; moving it re-checks the doctor's availability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			date, tm, status, err := f.parse()
			if err != nil {
				return err
			}
			if status == "" {
				return appointment.ErrInvalidStatus
			}

			appt, err := a.svc.UpdateAppointment(cmd.Context(), id, appointment.UpdateRequest{
				PatientID: f.patientID,
				DoctorID:  f.doctorID,
				Date:      date,
				Time:      tm,
				Status:    status,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated appointment %d: %s at %s (%s)\n",
				appt.ID, appt.Date, appt.Time, appt.Status)
			return nil
		},
	}
	f.register(cmd, true, true)

	return cmd
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an appointment and free its slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			cancelled, err := a.svc.CancelAppointment(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !cancelled {
				fmt.Fprintf(cmd.OutOrStdout(), "Appointment %d was not cancelled: not found or already cancelled\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled appointment %d\n", id)
			return nil
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		f         slotFlags
		excludeID int64
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether a doctor is free at a date and time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, tm, _, err := f.parse()
			if err != nil {
				return err
			}

			free, err := a.svc.CheckAvailability(cmd.Context(), f.doctorID, date, tm, excludeID)
			if err != nil {
				return err
			}

			verdict := "available"
			if !free {
				verdict = "NOT available"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Doctor %d is %s on %s at %s\n", f.doctorID, verdict, date, tm)
			return nil
		},
	}
	f.register(cmd, false, false)
	cmd.Flags().Int64Var(&excludeID, "exclude", 0, "ignore this appointment id")

	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			detail, err := a.svc.GetAppointment(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printAppointments(cmd.OutOrStdout(), []appointment.AppointmentDetail{*detail})
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count appointments per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := a.svc.StatusSummary(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STATUS\tCOUNT")
			for _, st := range appointment.Statuses {
				fmt.Fprintf(w, "%s\t%d\n", st, sum.Counts[st])
			}
			fmt.Fprintf(w, "Total\t%d\n", sum.Total)
			fmt.Fprintf(w, "Completion rate\t%.1f%%\n", sum.CompletionRate)
			return w.Flush()
		},
	}
}

func printAppointments(out io.Writer, appointments []appointment.AppointmentDetail) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTIME\tPATIENT\tDOCTOR\tSTATUS")
	for _, a := range appointments {
		patient, doctor := strconv.FormatInt(a.PatientID, 10), strconv.FormatInt(a.DoctorID, 10)
		if a.Patient != nil {
			patient = a.Patient.Name
		}
		if a.Doctor != nil {
			doctor = a.Doctor.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Date, a.Time, patient, doctor, a.Status)
	}
	return w.Flush()
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not an appointment id", appointment.ErrValidation, raw)
	}
	return id, nil
}
