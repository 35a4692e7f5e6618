package main

import (
	"fmt"
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const demoCustomer = "Acme Corp"

func newSeedCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert three demo invoices for " + demoCustomer,
		Long: `Insert a paid, a partially paid and an overdue demo invoice, dated
relative to today. Invoices whose number already exists are skipped.`,
		Args: cobra.NoArgs,
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

			drafts, err := demoInvoices(svc.Today())
			if err != nil {
				return err
			}

			created := 0
			for _, draft := range drafts {
				inv, err := svc.Create(cmd.Context(), draft)
				if err != nil {
					if domainErr, ok := shared.AsDomainError(err); ok && domainErr.Code == "ALREADY_EXISTS" {
						log.Info("Demo invoice already present", zap.String("invoice_number", draft.InvoiceNumber))
						continue
					}
					return fmt.Errorf("failed to create %s: %w", draft.InvoiceNumber, err)
				}
				created++
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s %s\n", inv.InvoiceNumber, inv.Status, inv.ID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d demo invoice(s) created\n", created)
			return nil
		},
	}
}

type demoLine struct {
	description string
	quantity    int
	unitPrice   string
}

type demoInvoice struct {
	number     string
	issuedDays int
	dueDays    int
	paid       string
	lines      []demoLine
}

var demoSet = []demoInvoice{
	{
		number:     "DEMO-0001",
		issuedDays: -45,
		dueDays:    -15,
		paid:       "1500.00",
		lines: []demoLine{
			{description: "Website redesign", quantity: 1, unitPrice: "1200.00"},
			{description: "Hosting (3 months)", quantity: 3, unitPrice: "100.00"},
		},
	},
	{
		number:     "DEMO-0002",
		issuedDays: -10,
		dueDays:    20,
		paid:       "250.00",
		lines: []demoLine{
			{description: "Consulting hours", quantity: 8, unitPrice: "95.00"},
		},
	},
	{
		number:     "DEMO-0003",
		issuedDays: -60,
		dueDays:    -30,
		paid:       "0",
		lines: []demoLine{
			{description: "Support retainer", quantity: 1, unitPrice: "480.00"},
			{description: "On-site visit", quantity: 2, unitPrice: "150.00"},
		},
	},
}

// demoInvoices builds a paid, a partially paid and an overdue invoice
// dated relative to today
func demoInvoices(today time.Time) ([]*invoicing.Invoice, error) {
	drafts := make([]*invoicing.Invoice, 0, len(demoSet))
	for _, d := range demoSet {
		items := make([]invoicing.InvoiceItem, 0, len(d.lines))
		for _, line := range d.lines {
			item, err := invoicing.NewInvoiceItem(line.description, line.quantity, decimal.RequireFromString(line.unitPrice))
			if err != nil {
				return nil, err
			}
			items = append(items, *item)
		}

		due := today.AddDate(0, 0, d.dueDays)
		inv, err := invoicing.NewInvoice(d.number, demoCustomer, today.AddDate(0, 0, d.issuedDays), &due, items...)
		if err != nil {
			return nil, err
		}
		inv.AmountPaid = decimal.RequireFromString(d.paid)
		drafts = append(drafts, inv)
	}
	return drafts, nil
}
