package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/marfebr/go_trafficjam/internal/limiter"
	"github.com/marfebr/go_trafficjam/internal/stress"
)

func newStressCmd(a *app) *cobra.Command {
	opts := stress.DefaultOptions()
	opts.Cleanup = true
	var kind string

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Dispara incrementos concorrentes e mostra sucessos/falhas por chave",
		Long: `Cada worker faz N incrementos alternando entre K chaves de um limite
com teto LIMIT por período. Num período curto, os sucessos por chave devem
ficar próximos de LIMIT vezes a duração em períodos, nunca acima.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := limiter.ParseKind(kind)
			if err != nil {
				return err
			}
			opts.Kind = k

			st, cfg, err := a.connect(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer st.Close()

			runner, err := stress.NewRunner(st, opts, a.logger.Named("stress"), a.limiterOptions(cfg)...)
			if err != nil {
				return err
			}
			report, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			return writeStressReport(cmd, report)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.Workers, "workers", "w", opts.Workers, "goroutines concorrentes")
	f.IntVarP(&opts.Actions, "actions", "n", opts.Actions, "incrementos por worker")
	f.IntVarP(&opts.Keys, "keys", "k", opts.Keys, "chaves percorridas por worker")
	f.Int64VarP(&opts.Limit, "limit", "l", opts.Limit, "teto por período")
	f.DurationVar(&opts.Period, "period", opts.Period, "período do limite")
	f.StringVar(&kind, "kind", "sliding", "algoritmo: sliding|gcra|rolling|lifetime")
	f.Float64Var(&opts.RPS, "rps", 0, "ritmo global em incrementos por segundo (0 = sem limite)")
	f.StringVar(&opts.Action, "action", "", "nome da ação (padrão: stress-<id>)")
	f.BoolVar(&opts.Cleanup, "cleanup", true, "apaga as chaves ao final")
	return cmd
}

func writeStressReport(cmd *cobra.Command, report stress.Report) error {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s (%s) em %s", report.Action, report.Kind, report.Elapsed.Round(time.Millisecond)))
	t.AppendHeader(table.Row{"Chave", "Sucessos", "Falhas"})
	for _, k := range report.Keys {
		t.AppendRow(table.Row{k.Key, k.Successes, k.Failures})
	}
	successes, failures := report.Totals()
	t.AppendFooter(table.Row{"Total", successes, failures})
	t.Render()
	return nil
}
