package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tymonhq/tymon/internal/engine"
	"github.com/tymonhq/tymon/internal/llm"
	"github.com/tymonhq/tymon/internal/store"
	"github.com/tymonhq/tymon/internal/transcript"
)

var (
	extractUser   string
	extractSource string
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract memories from a transcript or journal file",
	Long: "Read a JSONL chat transcript or a plain-text journal entry, ask the model for " +
		"durable facts and merge them into the user's memories.",
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractUser, "user", "u", store.DemoUserID, "user id")
	extractCmd.Flags().StringVar(&extractSource, "source", engine.SourceJournal, "memory source: chat, journal or manual")
}

func runExtract(cmd *cobra.Command, args []string) error {
	switch extractSource {
	case engine.SourceChat, engine.SourceJournal, engine.SourceManual:
	default:
		return fmt.Errorf("unknown source %q", extractSource)
	}

	text, err := loadText(args[0])
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to extract.")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	if client == nil {
		return engine.ErrNoLLM
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng := engine.New(db, client, cfg.Memory)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Duration(cfg.Memory.ExtractionTimeoutSeconds)*time.Second)
	defer cancel()

	stored, err := eng.ExtractAndStore(ctx, extractUser, text, extractSource)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d memories.\n", len(stored))
	printMemories(cmd.OutOrStdout(), stored)
	return nil
}

// loadText returns the text to extract from path. A JSONL transcript is
// condensed into "User:"/"Tymon:" lines; any other file is used as-is.
func loadText(path string) (string, error) {
	turns, err := transcript.ParseFile(path)
	if err != nil {
		return "", err
	}
	if len(turns) > 0 {
		return transcript.Condense(turns), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(raw), nil
}
