package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grain-editor/grain-shell/internal/binder"
	"github.com/grain-editor/grain-shell/internal/content"
	"github.com/grain-editor/grain-shell/internal/status"
	"github.com/grain-editor/grain-shell/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Use a file as the editing surface of a document",
	Long: `Watch a file and treat every change as an edit of a document. The document
is saved the same way an editor view would save it; the file itself is never
written. Stopping the command flushes the last content.

Examples:
  # Mirror notes.md into the document of the same absolute path
  grain-shell watch notes.md

  # Mirror a drawing into a named document
  grain-shell watch board.excalidraw --document boards/q3 --type excalidraw`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("document", "", "Document id (defaults to the absolute file path)")
	watchCmd.Flags().String("type", string(content.TypeText), "Content type of the document")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	documentID, err := cmd.Flags().GetString("document")
	if err != nil {
		return fmt.Errorf("failed to get document flag: %w", err)
	}
	typeFlag, err := cmd.Flags().GetString("type")
	if err != nil {
		return fmt.Errorf("failed to get type flag: %w", err)
	}
	contentType, err := content.ParseType(typeFlag)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := watchFile(ctx, rt.registry, args[0], documentID, contentType)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	if err := rt.close(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// watchFile attaches a view for documentID and forwards changes of path to
// it until ctx is done. The view is detached, and its content flushed,
// before watchFile returns.
func watchFile(ctx context.Context, registry *binder.Registry, path, documentID string, contentType content.Type) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if documentID == "" {
		documentID = abs
	}

	view, err := registry.Attach(ctx, documentID,
		binder.WithContentType(contentType),
		binder.WithStatusSink(statusLogger(slog.Default(), documentID)))
	if err != nil {
		return fmt.Errorf("failed to open document '%s': %w", documentID, err)
	}

	surface, err := watch.NewFileSurface(abs, view)
	if err != nil {
		return errors.Join(err, view.Detach(context.Background()).Err)
	}
	defer func() {
		if err := surface.Close(); err != nil {
			slog.Warn("Failed to close file watcher", "error", err)
		}
	}()

	watchErr := surface.Watch(ctx)
	if errors.Is(watchErr, context.Canceled) {
		watchErr = nil
	}

	// ctx is done, the final flush must not be canceled with it
	res := view.Detach(context.WithoutCancel(ctx))
	if !res.OK() {
		return errors.Join(watchErr, fmt.Errorf("final save of '%s' failed: %w", documentID, res.Err))
	}
	slog.Info("Document closed", "document", documentID, "outcome", res.Outcome)
	return watchErr
}

// statusLogger reports the save status of documentID on logger
func statusLogger(logger *slog.Logger, documentID string) status.Callbacks {
	return status.Callbacks{
		OnUnsaved: func() { logger.Debug("Document has unsaved changes", "document", documentID) },
		OnSaving:  func() { logger.Debug("Saving document", "document", documentID) },
		OnSaved:   func() { logger.Info("Document saved", "document", documentID) },
		OnError: func(reason string) {
			logger.Error("Save failed", "document", documentID, "reason", reason)
		},
	}
}
