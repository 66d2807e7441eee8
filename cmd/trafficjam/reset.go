package main

import (
	"errors"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newResetCmd(a *app) *cobra.Command {
	var all, yes bool

	cmd := &cobra.Command{
		Use:   "reset [ação...]",
		Short: "Apaga o estado dos limites das ações indicadas",
		Long: `Apaga, para cada ação, as chaves de todos os algoritmos sob o prefixo.
Faz SCAN no keyspace inteiro: uso administrativo, não em produção.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("informe as ações ou --all")
			}
			if !yes {
				return errors.New("reset é destrutivo: confirme com --yes")
			}

			core, err := a.openLimiter(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			actions := args
			if all {
				actions = []string{""}
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Ação", "Chaves apagadas"})

			var total int64
			for _, action := range actions {
				n, err := core.ResetAll(cmd.Context(), strings.TrimSpace(action))
				if err != nil {
					return err
				}
				total += n
				if action == "" {
					action = "*"
				}
				t.AppendRow(table.Row{action, n})
			}
			t.AppendFooter(table.Row{"Total", total})
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "apaga todas as chaves sob o prefixo")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirma o reset destrutivo")
	return cmd
}
