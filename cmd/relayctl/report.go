package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fuomag9/boardrelay/internal/app"
	"github.com/fuomag9/boardrelay/internal/report"
)

func newReportCmd(e *env) *cobra.Command {
	var send bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the current task report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			defer a.Close()

			if send {
				if err := a.Router.SendReport(cmd.Context(), e.cfg.Telegram.GroupID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report sent to chat %d\n", e.cfg.Telegram.GroupID)
				return nil
			}

			text, err := a.Reports.Generate(cmd.Context())
			if err != nil {
				return err
			}
			if text == "" {
				text = report.EmptyReportText
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "post the report to the broadcast chat instead of printing it")
	return cmd
}
