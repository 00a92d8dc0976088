package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
)

func newPreprocessCommand(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess [files...]",
		Short: "Parse raw statute files into structured acts",
		Long: `Extracts text from .txt or .pdf statutes, splits it into parts and
sections, and stores the parsed act. The act is named after the file stem.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := load(cmd.Context(), false)
			if err != nil {
				return err
			}
			if svc.Corpus == nil {
				return errNotConfigured
			}

			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				act, err := svc.Corpus.Preprocess(cmd.Context(), filepath.Base(path), f)
				f.Close()
				if err != nil {
					return fmt.Errorf("preprocess %s: %w", path, err)
				}

				sections := 0
				for _, part := range act.Parts {
					sections += len(part.Sections)
				}
				cmd.Printf("%s: %d parts, %d sections, %d schedules\n", act.Name, len(act.Parts), sections, len(act.Schedules))
			}
			return nil
		},
	}
}

func newChunkCommand(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "chunk [act]",
		Short: "Split parsed acts into token-bounded chunks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := load(cmd.Context(), false)
			if err != nil {
				return err
			}
			if svc.Corpus == nil {
				return errNotConfigured
			}

			if len(args) == 1 {
				n, err := svc.Corpus.ChunkAct(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cmd.Printf("%s: %d chunks\n", args[0], n)
				return nil
			}

			counts, failed, err := svc.Corpus.ChunkAll(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range sortedKeys(counts) {
				cmd.Printf("%s: %d chunks\n", name, counts[name])
			}
			for _, name := range sortedKeys(failed) {
				cmd.PrintErrf("%s: failed: %s\n", name, failed[name])
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d acts failed to chunk", len(failed))
			}
			return nil
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
