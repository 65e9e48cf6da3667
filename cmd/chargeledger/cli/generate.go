// Package cli implements the operator subcommands of the chargeledger binary.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
	"github.com/odyssey-erp/chargeledger/internal/ledger/engine"
)

// Exit codes of the generate command.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitRejected    = 2
	ExitUnbalanced  = 10
	ExitPartialMiss = 11
)

// LedgerService is the engine surface the CLI drives.
type LedgerService interface {
	Generate(ctx context.Context, chargeID uuid.UUID, opts engine.Options) (engine.Result, error)
}

// GenerateOptions defines available flags for the generate command.
type GenerateOptions struct {
	ChargeID   uuid.UUID
	Insert     bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// GenerateCommand generates the ledger of one charge, prints it and returns the exit code.
func GenerateCommand(ctx context.Context, service LedgerService, opts GenerateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.ChargeID == uuid.Nil {
		_, _ = fmt.Fprintln(opts.Stderr, "generate: --charge is required")
		return ExitFailure
	}
	res, err := service.Generate(ctx, opts.ChargeID, engine.Options{InsertLedgerRecordsIfNotExists: opts.Insert})
	if err != nil {
		if ce, ok := ledger.AsCommonError(err); ok {
			if opts.JSONOutput {
				_ = json.NewEncoder(opts.Stdout).Encode(ce)
			} else {
				_, _ = fmt.Fprintf(opts.Stdout, "Charge %s rejected: %s\n", opts.ChargeID, ce.Message)
			}
			return ExitRejected
		}
		_, _ = fmt.Fprintf(opts.Stderr, "generate: %v\n", err)
		return ExitFailure
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(res); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "generate: encode json: %v\n", err)
			return ExitFailure
		}
	} else {
		renderHuman(opts.Stdout, opts.ChargeID, res)
	}
	switch {
	case !res.Ledger.Balance.IsBalanced:
		return ExitUnbalanced
	case len(res.Ledger.Errors) > 0:
		return ExitPartialMiss
	}
	return ExitOK
}

func renderHuman(out io.Writer, chargeID uuid.UUID, res engine.Result) {
	_, _ = fmt.Fprintf(out, "Ledger for charge %s: %d record(s)\n", chargeID, len(res.Ledger.Records))
	if len(res.Ledger.Records) > 0 {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "VALUE DATE\tCREDIT\tDEBIT\tAMOUNT\tCURRENCY\tDESCRIPTION")
		for _, e := range res.Ledger.Records {
			amount := fmt.Sprintf("%.2f", e.LocalCurrencyCreditAmount1)
			if e.CreditAmount1 != nil {
				amount = fmt.Sprintf("%.2f (%.2f)", *e.CreditAmount1, e.LocalCurrencyCreditAmount1)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ValueDate.Format("2006-01-02"), label(e.CreditAccount1), label(e.DebitAccount1),
				amount, e.Currency, firstLine(e.Description))
		}
		_ = tw.Flush()
	}
	if res.Ledger.Balance.IsBalanced {
		_, _ = fmt.Fprintln(out, "Balanced.")
	} else {
		_, _ = fmt.Fprintf(out, "UNBALANCED: residual %.2f\n", res.Ledger.Balance.Residual)
		for _, entity := range res.Ledger.Balance.UnbalancedEntities {
			_, _ = fmt.Fprintf(out, " - %s %.2f\n", entity.Identity, entity.Amount)
		}
	}
	if len(res.Ledger.Errors) > 0 {
		_, _ = fmt.Fprintf(out, "%d lookup error(s):\n", len(res.Ledger.Errors))
		for _, msg := range res.Ledger.Errors {
			_, _ = fmt.Fprintf(out, " - %s\n", msg)
		}
	}
	if res.Stored {
		_, _ = fmt.Fprintln(out, "Records stored.")
	}
}

func label(ref ledger.AccountRef) string {
	if ref.IsZero() {
		return "-"
	}
	if name := ref.Name(); name != "" {
		return name
	}
	return ref.ID().String()[:8]
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
