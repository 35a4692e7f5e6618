package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/spf13/cobra"
)

func newOverdueCmd(root *rootOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List unsettled invoices past their due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.setup()
			if err != nil {
				return err
			}
			svc, closeDB, err := openBillingService(cfg, log)
			if err != nil {
				return err
			}
			defer closeDB()

			date, err := resolveAsOf(asOf, svc)
			if err != nil {
				return err
			}
			invoices, err := svc.ListOverdue(cmd.Context(), date)
			if err != nil {
				return err
			}
			return writeOverdue(cmd.OutOrStdout(), invoices, date)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Reference date YYYY-MM-DD (default: today)")
	return cmd
}

func newSummaryCmd(root *rootOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print invoice counts and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.setup()
			if err != nil {
				return err
			}
			svc, closeDB, err := openBillingService(cfg, log)
			if err != nil {
				return err
			}
			defer closeDB()

			date, err := resolveAsOf(asOf, svc)
			if err != nil {
				return err
			}
			summary, err := svc.Summary(cmd.Context(), date)
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), summary, date)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Reference date YYYY-MM-DD (default: today)")
	return cmd
}

func writeOverdue(out io.Writer, invoices []invoicing.Invoice, asOf time.Time) error {
	if len(invoices) == 0 {
		_, err := fmt.Fprintf(out, "no overdue invoices as of %s\n", asOf.Format(invoicing.DateLayout))
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tCUSTOMER\tDUE\tDAYS LATE\tBALANCE")
	for i := range invoices {
		inv := &invoices[i]
		daysLate := int(asOf.Sub(invoicing.CalendarDate(*inv.DueDate)).Hours() / 24)
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			inv.InvoiceNumber,
			inv.CustomerName,
			inv.DueDate.Format(invoicing.DateLayout),
			daysLate,
			inv.BalanceDue().StringFixed(2),
		)
	}
	return w.Flush()
}

func writeSummary(out io.Writer, s invoicing.Summary, asOf time.Time) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "As of\t%s\n", asOf.Format(invoicing.DateLayout))
	fmt.Fprintf(w, "Invoices\t%d\n", s.TotalInvoices)
	fmt.Fprintf(w, "Paid\t%d\n", s.PaidCount)
	fmt.Fprintf(w, "Unpaid\t%d\n", s.UnpaidCount)
	fmt.Fprintf(w, "Overdue\t%d\n", s.OverdueCount)
	fmt.Fprintf(w, "Outstanding\t%s\n", s.TotalOutstanding.StringFixed(2))
	fmt.Fprintf(w, "Collected\t%s\n", s.TotalPaid.StringFixed(2))
	return w.Flush()
}
