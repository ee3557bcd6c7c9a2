package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/erauner12/condoboard/internal/dashboard"
)

var residentForm dashboard.ResidentInput

func init() {
	for _, c := range []*cobra.Command{addResidentCmd, updateResidentCmd} {
		c.Flags().StringVar(&residentForm.Name, "name", "", "Full name")
		c.Flags().StringVar(&residentForm.Phone, "phone", "", "Phone number, digits only or formatted")
		c.Flags().StringVar(&residentForm.Type, "type", "", "Owner or tenant")
		c.Flags().StringVar(&residentForm.UnitNumber, "unit", "", "Unit number")
		c.Flags().StringVar(&residentForm.Block, "block", "", "Block letter or number")
		c.Flags().StringVar(&residentForm.Status, "status", "", "Payment status: ok or late")
	}
	addResidentCmd.Flags().StringVar(&residentForm.Email, "resident-email", "", "Email of the new resident")

	recordCmd.Flags().StringVar(&ledgerKind, "kind", "income", "income or expense")
	recordCmd.Flags().StringVar(&ledgerDate, "date", "", "Entry date (YYYY-MM-DD), today when empty")
	reportCmd.Flags().StringVar(&incidentDescription, "description", "", "Details of the incident")
}

var addResidentCmd = &cobra.Command{
	Use:   "add-resident",
	Short: "Register a resident.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			return dispatch(cmd.Context(), s, dashboard.SaveResident{Input: residentForm})
		})
	},
}

var updateResidentCmd = &cobra.Command{
	Use:   "update-resident <id>",
	Short: "Change a resident's details. The email cannot be changed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			return dispatch(cmd.Context(), s, dashboard.SaveResident{ID: args[0], Input: residentForm})
		})
	},
}

var deleteResidentCmd = &cobra.Command{
	Use:   "delete-resident <email>",
	Short: "Remove a resident and their login account.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			return dispatch(cmd.Context(), s, dashboard.DeleteResident{Email: args[0]})
		})
	},
}

var reserveCmd = &cobra.Command{
	Use:   "reserve <area> <YYYY-MM-DD>",
	Short: "Book a common area.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			return dispatch(cmd.Context(), s, dashboard.CreateReservation{Area: args[0], Date: args[1]})
		})
	},
}

var cancelReservationCmd = &cobra.Command{
	Use:   "cancel-reservation <id>",
	Short: "Cancel a reservation.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			return dispatch(cmd.Context(), s, dashboard.CancelReservation{ID: args[0]})
		})
	},
}

var incidentDescription string

var reportCmd = &cobra.Command{
	Use:   "report <title>",
	Short: "Report an incident.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			return dispatch(cmd.Context(), s, dashboard.ReportIncident{Title: args[0], Description: incidentDescription})
		})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark an incident resolved.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			return dispatch(cmd.Context(), s, dashboard.ResolveIncident{ID: args[0]})
		})
	},
}

var (
	ledgerKind string
	ledgerDate string
)

var recordCmd = &cobra.Command{
	Use:   "record <description> <amount>",
	Short: "Add an income or expense to the ledger.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			return dispatch(cmd.Context(), s, dashboard.RecordLedgerEntry{
				Description: args[0],
				Amount:      amount,
				Kind:        ledgerKind,
				Date:        ledgerDate,
			})
		})
	},
}

var deleteEntryCmd = &cobra.Command{
	Use:   "delete-entry <id>",
	Short: "Remove a ledger entry.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			return dispatch(cmd.Context(), s, dashboard.DeleteLedgerEntry{ID: args[0]})
		})
	},
}
