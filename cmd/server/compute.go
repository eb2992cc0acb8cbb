package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/config"
	"github.com/warp/hours-engine/export"
	"github.com/warp/hours-engine/store"
)

// computeInput is the JSON file read by the compute command.
type computeInput struct {
	Year          int                      `json:"year"`
	Month         int                      `json:"month"`
	Networks      []string                 `json:"networks,omitempty"`
	ConsumeAll    *bool                    `json:"consume_all,omitempty"`
	MedicalBudget decimal.Decimal          `json:"medical_budget"`
	Workers       []allocation.WorkerInput `json:"workers"`
}

type computeFlags struct {
	input      string
	payslips   string
	output     string
	label      string
	year       int
	month      int
	consumeAll bool
	save       bool
}

func computeCmd() *cobra.Command {
	var f computeFlags

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Run one allocation offline and print the demand check",
		Long: `Reads workers from a JSON file (--input) and/or pasted payslip text
(--payslips), runs the engine with the configured policy and prints the
reconciliation. --output writes the workbook, --save persists the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.input == "" && f.payslips == "" {
				return fmt.Errorf("one of --input or --payslips is required")
			}

			in, err := readComputeInput(f.input)
			if err != nil {
				return err
			}
			if f.year != 0 {
				in.Year = f.year
			}
			if f.month != 0 {
				in.Month = f.month
			}
			if cmd.Flags().Changed("consume-all") {
				in.ConsumeAll = &f.consumeAll
			}

			var payslips string
			if f.payslips != "" {
				data, err := os.ReadFile(f.payslips)
				if err != nil {
					return fmt.Errorf("failed to read payslips: %w", err)
				}
				payslips = string(data)
			}

			runInput := buildRunInput(app.cfg, in, payslips)
			app.logger.Info("Running allocation",
				zap.Int("workers", len(runInput.Workers)),
				zap.Strings("networks", runInput.Networks),
				zap.Bool("consume_all", runInput.ConsumeAll))

			res, err := app.engine.Run(runInput)
			if err != nil {
				return err
			}
			if err := printCheck(cmd.OutOrStdout(), res); err != nil {
				return err
			}

			if f.output != "" {
				if err := writeWorkbook(f.output, res, app.cfg.ExportGroups()); err != nil {
					return err
				}
				app.logger.Info("Workbook written", zap.String("path", f.output))
			}

			if f.save {
				runs, err := openStore(app.ctx, app.cfg.Database, app.logger)
				if err != nil {
					return fmt.Errorf("failed to initialize database: %w", err)
				}
				defer runs.Close()

				run := store.NewRun(res, in.MedicalBudget, f.label)
				if err := runs.SaveRun(app.ctx, run); err != nil {
					return fmt.Errorf("failed to save run: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nSaved run %s\n", run.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.input, "input", "i", "", "JSON file with year, month, networks and workers")
	cmd.Flags().StringVar(&f.payslips, "payslips", "", "Text file with payslip blocks")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write the workbook to this .xlsx file")
	cmd.Flags().IntVar(&f.year, "year", 0, "Override the input year")
	cmd.Flags().IntVar(&f.month, "month", 0, "Override the input month")
	cmd.Flags().BoolVar(&f.consumeAll, "consume-all", true, "Place every hour (false: stop at demand)")
	cmd.Flags().BoolVar(&f.save, "save", false, "Persist the run in the configured store")
	cmd.Flags().StringVar(&f.label, "label", "", "Label of the saved run")

	return cmd
}

func readComputeInput(path string) (computeInput, error) {
	var in computeInput
	if path == "" {
		return in, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return in, fmt.Errorf("failed to read input: %w", err)
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("failed to parse input %s: %w", path, err)
	}
	return in, nil
}

// buildRunInput applies configured defaults and roster normalization.
func buildRunInput(cfg *config.Config, in computeInput, payslips string) allocation.RunInput {
	normalizer := cfg.Normalizer()
	workers := append([]allocation.WorkerInput(nil), in.Workers...)
	if payslips != "" {
		workers = append(workers, normalizer.ParsePayslips(payslips)...)
	}

	networks := in.Networks
	if len(networks) == 0 {
		networks = cfg.Engine.Networks
	}
	consumeAll := cfg.Engine.ConsumeAll
	if in.ConsumeAll != nil {
		consumeAll = *in.ConsumeAll
	}

	return allocation.RunInput{
		Networks:      networks,
		Year:          in.Year,
		Month:         in.Month,
		Workers:       normalizer.Prepare(workers),
		ConsumeAll:    consumeAll,
		MedicalBudget: in.MedicalBudget,
	}
}

// printCheck writes the reconciliation table, totals and leftovers.
func printCheck(w io.Writer, res *allocation.Result) error {
	fmt.Fprintf(w, "Period %s, %d rows, %s total\n\n", res.Period, len(res.Allocations), res.TotalAmount().StringFixed(2))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ROLE\tNETWORK\tDEMAND\tALLOCATED\tDIFF\tOK\t")
	for _, s := range res.Summary {
		ok := "ok"
		if !s.OK {
			ok = "--"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%+.2f\t%s\t\n", s.Role, s.Network, s.Demand, s.Allocated, s.Diff, ok)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(res.Leftovers) > 0 {
		fmt.Fprintln(w, "\nUnplaced hours:")
		for _, l := range res.Leftovers {
			fmt.Fprintf(w, "- %s (%s): %.2f\n", l.Name, l.Pool, l.Hours)
		}
	}
	for _, s := range res.SupervisorSplits {
		if s.Delta != 0 {
			fmt.Fprintf(w, "Supervisor %s: declared %.2f, allocated %.2f (%+.2f)\n", s.Name, s.DeclaredHours, s.AllocatedHours, s.Delta)
		}
	}
	if res.Balanced() {
		fmt.Fprintln(w, "\nAll cells balanced")
	}
	return nil
}

func writeWorkbook(path string, res *allocation.Result, groups []export.Group) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.Write(file, res, export.Options{Groups: groups}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
