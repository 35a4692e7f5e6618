package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/billing/backend/internal/infrastructure/csvimport"
	"github.com/spf13/cobra"
)

type importOptions struct {
	dryRun      bool
	skipInvalid bool
	delimiter   string
	maxErrors   int
}

func newImportCmd(root *rootOptions) *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create invoices from a CSV file",
		Long: `Create invoices from a CSV file with one item per row.

Required columns: invoice_number, customer_name, issue_date, description,
quantity, unit_price. Optional columns: due_date, amount_paid. Rows sharing
an invoice_number form one invoice. Dates use YYYY-MM-DD.

Invoices whose number already exists are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			delim, err := opts.delimiterRune()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := csvimport.ReadInvoices(f, opts.maxErrors, csvimport.WithDelimiter(delim))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			if result.Errors.HasErrors() {
				fmt.Fprint(cmd.ErrOrStderr(), result.Errors.String())
				if !opts.skipInvalid {
					return fmt.Errorf("%d row error(s), nothing imported (use --skip-invalid to import the valid invoices)", result.Errors.TotalCount())
				}
			}

			if opts.dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) read, %d invoice(s) valid\n", result.Rows, len(result.Invoices))
				return nil
			}

			cfg, log, err := root.setup()
			if err != nil {
				return err
			}
			svc, closeDB, err := openBillingService(cfg, log)
			if err != nil {
				return err
			}
			defer closeDB()

			return importInvoices(cmd.Context(), svc, result.Invoices, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate the file without writing")
	cmd.Flags().BoolVar(&opts.skipInvalid, "skip-invalid", false, "Import valid invoices even when other rows fail")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", ",", "Field delimiter")
	cmd.Flags().IntVar(&opts.maxErrors, "max-errors", 100, "Maximum number of row errors to print")
	return cmd
}

func (o *importOptions) delimiterRune() (rune, error) {
	if utf8.RuneCountInString(o.delimiter) != 1 {
		return 0, errors.New("--delimiter must be a single character")
	}
	r, _ := utf8.DecodeRuneInString(o.delimiter)
	return r, nil
}

type invoiceCreator interface {
	Create(ctx context.Context, inv *invoicing.Invoice) (*invoicing.Invoice, error)
}

// importInvoices creates each draft and skips numbers that already exist
func importInvoices(ctx context.Context, svc invoiceCreator, drafts []*invoicing.Invoice, out io.Writer) error {
	created, skipped := 0, 0
	for _, draft := range drafts {
		inv, err := svc.Create(ctx, draft)
		if err != nil {
			if domainErr, ok := shared.AsDomainError(err); ok && domainErr.Code == "ALREADY_EXISTS" {
				skipped++
				fmt.Fprintf(out, "%s  skipped, already exists\n", draft.InvoiceNumber)
				continue
			}
			return fmt.Errorf("failed to create %s after %d import(s): %w", draft.InvoiceNumber, created, err)
		}
		created++
		fmt.Fprintf(out, "%s  %-14s %s\n", inv.InvoiceNumber, inv.Status, inv.ID)
	}
	fmt.Fprintf(out, "%d invoice(s) imported, %d skipped\n", created, skipped)
	return nil
}
