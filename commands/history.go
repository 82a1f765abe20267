package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/clients"
)

func newHistoryCmd(g *globals) *cobra.Command {
	var (
		limit   int
		export  string
		session bool
		remote  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			if remote != "" {
				if export != "" || session {
					return fmt.Errorf("--export works on the local history only")
				}
				entries, err := clients.NewHTTP(remote, 30*time.Second).History(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			}

			if err := g.load(cmd); err != nil {
				return err
			}
			a, err := openApp(g.cfg, g.log)
			if err != nil {
				return err
			}
			defer a.release(g.log)

			if session && export == "" {
				export = g.cfg.Paths.Outputs
			}
			if export != "" {
				dir, err := a.pipeline.ExportHistory(ctx, export, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dir)
				return nil
			}
			entries, err := a.pipeline.History(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries (default from config)")
	cmd.Flags().StringVar(&export, "export", "", "write history.json and summary.json into a session directory under DIR")
	cmd.Flags().BoolVar(&session, "export-session", false, "like --export, into paths.outputs from the config")
	cmd.Flags().StringVar(&remote, "remote", "", "backend URL instead of the local store")
	return cmd
}
