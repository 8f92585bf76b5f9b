package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"breakbot/internal/config"
	"breakbot/internal/ledger"

	"github.com/spf13/cobra"
)

// stateCmd печатает сохранённый снапшот леджера без запуска бота.
func stateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Показать сохранённое состояние (JSON)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			st, err := ledger.NewFileStore(cfg.Runtime.StatePath).Load()
			switch {
			case errors.Is(err, ledger.ErrNoSnapshot):
				st = ledger.Defaults(cfg.Risk.StartEquity)
			case err != nil:
				return err
			}

			out, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return fmt.Errorf("Не удалось сериализовать состояние: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
