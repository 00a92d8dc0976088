package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newAuditCommand(load Loader) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent queries from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := load(cmd.Context(), false)
			if err != nil {
				return err
			}
			if svc.Audit == nil {
				return errors.New("audit log not configured: set AUDIT_ENABLED and POSTGRES_DSN")
			}

			records, err := svc.Audit.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("No queries recorded.")
				return nil
			}
			for _, rec := range records {
				cmd.Printf("%s  %-8s %-30q -> %s %s (%.3f, %.0f ms)\n",
					rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Scope, rec.Query,
					rec.TopAct, rec.TopSection, rec.TopScore, rec.Timings.TotalMS)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows to show")
	return cmd
}
