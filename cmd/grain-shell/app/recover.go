package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/grain-editor/grain-shell/internal/journal"
	"github.com/grain-editor/grain-shell/internal/store"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Replay content whose final save failed",
	Long: `Replay the recovery journal into the content store. The journal holds the
content of documents whose last save failed while their editing surface was
closing. Replayed entries are removed; entries that still fail are kept.

Examples:
  # Show what would be replayed
  grain-shell recover --dry-run

  # Replay every entry
  grain-shell recover`,
	RunE: runRecover,
}

func init() {
	recoverCmd.Flags().Bool("dry-run", false, "List the journal entries without replaying them")
}

func runRecover(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("failed to get dry-run flag: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	j, err := journal.Open(cfg.Storage.GetJournalDir())
	if err != nil {
		return err
	}

	if dryRun {
		entries, err := j.Entries(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			cmd.Printf("%s\t%s\t%d bytes\t%s\n",
				e.RecordedAt.Format("2006-01-02 15:04:05"), e.DocumentID, len(e.Payload), e.Reason)
		}
		slog.Info("Journal entries pending", "count", len(entries))
		return nil
	}

	contents, err := store.New(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open content store: %w", err)
	}
	defer func() {
		if err := contents.Close(); err != nil {
			slog.Error("Failed to close content store", "error", err)
		}
	}()

	return replayJournal(ctx, j, contents)
}

// replayJournal writes every journal entry into contents and reports the
// entries that could not be written
func replayJournal(ctx context.Context, j *journal.Journal, contents store.ContentStore) error {
	replayed, err := j.Replay(ctx, func(ctx context.Context, e journal.Entry) error {
		// an empty content type keeps the type already recorded for the document
		rec, err := contents.Write(ctx, e.DocumentID, e.Payload, "")
		if err != nil {
			return err
		}
		slog.Info("Recovered document",
			"document", e.DocumentID,
			"version", rec.Version,
			"recorded_at", e.RecordedAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replay journal: %w", err)
	}

	left, err := j.Entries(ctx)
	if err != nil {
		return err
	}
	slog.Info("Journal replay finished",
		"replayed", replayed,
		"remaining", len(left))
	if len(left) > 0 {
		return fmt.Errorf("%d journal entries could not be replayed", len(left))
	}
	return nil
}
