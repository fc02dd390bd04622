package internal

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/starford/scribe/internal/backend"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/upload"
)

// ListTransactions prints every imported transaction and their total.
func (a *App) ListTransactions(ctx context.Context) error {
	txs, err := get[[]models.Transaction](ctx, a, backend.TransactionsPath)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if len(txs) == 0 {
		a.printf("%s\n", dimStyle.Render("No transactions yet. Import a CSV with `scribe finance upload`."))
		return nil
	}

	var total models.Amount
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", headerStyle.Render("DATE"), headerStyle.Render("NAME"), headerStyle.Render("CATEGORY"), headerStyle.Render("AMOUNT"))
	for _, tx := range txs {
		total += tx.Amount
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", tx.Date.Format("2006-01-02"), tx.Name, tx.Category, tx.Amount)
	}
	_, _ = fmt.Fprintf(tw, "\t\t%s\t%s\t\n", headerStyle.Render("TOTAL"), total)
	return tw.Flush()
}

// UploadCSV imports the transactions file at path.
func (a *App) UploadCSV(ctx context.Context, path string) error {
	f, err := upload.Open(path, upload.MaxCSVSize)
	if err != nil {
		return err
	}
	res, summary := a.api.UploadCSV(ctx, f)
	if summary != nil {
		for _, e := range summary.Errors {
			a.printf("  %s\n", dimStyle.Render(e))
		}
	}
	return a.report(res)
}
