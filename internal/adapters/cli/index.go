package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCommand(load Loader) *cobra.Command {
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "index [act]",
		Short: "Embed chunk files and upsert them into the vector store",
		Long: `Indexes one act, or every chunked act when none is given. Re-running is
idempotent: chunk identities are content addressed per embedding model.

With --enqueue the acts are published to the index queue for the worker
instead of being indexed in this process.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if enqueue {
				return runEnqueue(cmd, load, args)
			}

			svc, err := load(cmd.Context(), true)
			if err != nil {
				return err
			}
			if svc.Indexer == nil {
				return errNotConfigured
			}

			if len(args) == 1 {
				stats, err := svc.Indexer.IndexAct(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cmd.Printf("%s: %d chunks in %d batches (%s)\n", stats.Act, stats.Chunks, stats.Batches, stats.Duration)
				return nil
			}

			report, err := svc.Indexer.IndexAll(cmd.Context())
			if err != nil {
				return err
			}
			for _, stats := range report.Indexed {
				cmd.Printf("%s: %d chunks in %d batches (%s)\n", stats.Act, stats.Chunks, stats.Batches, stats.Duration)
			}
			for _, name := range sortedKeys(report.Failed) {
				cmd.PrintErrf("%s: failed: %s\n", name, report.Failed[name])
			}
			cmd.Printf("indexed %d chunks across %d acts\n", report.TotalChunks(), len(report.Indexed))
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d acts failed to index", len(report.Failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "publish index jobs to the queue instead of indexing in-process")
	return cmd
}

func runEnqueue(cmd *cobra.Command, load Loader, args []string) error {
	svc, err := load(cmd.Context(), false)
	if err != nil {
		return err
	}
	if svc.Queue == nil {
		return errors.New("index queue not configured: set NATS_URL")
	}

	acts := args
	if len(acts) == 0 {
		if svc.Chunks == nil {
			return errNotConfigured
		}
		if acts, err = svc.Chunks.ListActs(cmd.Context()); err != nil {
			return err
		}
	}

	for _, act := range acts {
		if err := svc.Queue.PublishIndexAct(cmd.Context(), act); err != nil {
			return fmt.Errorf("enqueue %s: %w", act, err)
		}
		cmd.Printf("queued %s\n", act)
	}
	return nil
}
