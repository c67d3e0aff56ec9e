package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tymonhq/tymon/internal/engine"
	"github.com/tymonhq/tymon/internal/store"
)

var (
	memoriesUser  string
	searchLimit   int
	addImportance float64
	addPinned     bool
)

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "Inspect and manage stored memories",
}

var memoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories, newest first",
	Args:  cobra.NoArgs,
	RunE: withEngine(func(ctx context.Context, eng *engine.Engine, cmd *cobra.Command, args []string) error {
		memories, err := eng.All(ctx, memoriesUser)
		if err != nil {
			return err
		}
		printMemories(cmd.OutOrStdout(), memories)
		return nil
	}),
}

var memoriesSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Show the memories relevant to a query",
	Long:  "Rank memories by keyword overlap with the query. Matched memories have their use recorded, as in chat.",
	Args:  cobra.MinimumNArgs(1),
	RunE: withEngine(func(ctx context.Context, eng *engine.Engine, cmd *cobra.Command, args []string) error {
		memories, err := eng.Relevant(ctx, memoriesUser, strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}
		printMemories(cmd.OutOrStdout(), memories)
		return nil
	}),
}

var memoriesAddCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Remember something directly",
	Args:  cobra.MinimumNArgs(1),
	RunE: withEngine(func(ctx context.Context, eng *engine.Engine, cmd *cobra.Command, args []string) error {
		req := engine.RememberRequest{
			Content: strings.Join(args, " "),
			Pinned:  addPinned,
		}
		if cmd.Flags().Changed("importance") {
			req.ImportanceScore = &addImportance
		}
		m, err := eng.Remember(ctx, memoriesUser, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remembered %s\n", m.ID)
		return nil
	}),
}

var memoriesPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired memories and enforce the per-user budget",
	Args:  cobra.NoArgs,
	RunE: withEngine(func(ctx context.Context, eng *engine.Engine, cmd *cobra.Command, args []string) error {
		res, err := eng.Prune(ctx, memoriesUser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned: expired=%d evicted=%d remaining=%d\n", res.Expired, res.Evicted, res.Remaining)
		return nil
	}),
}

var memoriesPinCmd = &cobra.Command{
	Use:   "pin [memory-id]",
	Short: "Pin a memory so it never expires or gets evicted",
	Args:  cobra.ExactArgs(1),
	RunE:  withEngine(setPinned(true)),
}

var memoriesUnpinCmd = &cobra.Command{
	Use:   "unpin [memory-id]",
	Short: "Unpin a memory",
	Args:  cobra.ExactArgs(1),
	RunE:  withEngine(setPinned(false)),
}

var memoriesForgetCmd = &cobra.Command{
	Use:   "forget [memory-id]",
	Short: "Delete a memory",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, eng *engine.Engine, cmd *cobra.Command, args []string) error {
		if err := eng.Forget(ctx, memoriesUser, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])
		return nil
	}),
}

func init() {
	memoriesCmd.PersistentFlags().StringVarP(&memoriesUser, "user", "u", store.DemoUserID, "user id")
	memoriesSearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default from config)")
	memoriesAddCmd.Flags().Float64Var(&addImportance, "importance", 0.5, "raw importance score in [0,1]")
	memoriesAddCmd.Flags().BoolVar(&addPinned, "pin", false, "pin the memory")

	memoriesCmd.AddCommand(memoriesListCmd)
	memoriesCmd.AddCommand(memoriesSearchCmd)
	memoriesCmd.AddCommand(memoriesAddCmd)
	memoriesCmd.AddCommand(memoriesPruneCmd)
	memoriesCmd.AddCommand(memoriesPinCmd)
	memoriesCmd.AddCommand(memoriesUnpinCmd)
	memoriesCmd.AddCommand(memoriesForgetCmd)
}

type engineRun func(ctx context.Context, eng *engine.Engine, cmd *cobra.Command, args []string) error

// withEngine opens the database and builds a memory-only engine for run.
func withEngine(run engineRun) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		return run(cmd.Context(), engine.New(db, nil, cfg.Memory), cmd, args)
	}
}

func setPinned(pinned bool) engineRun {
	return func(ctx context.Context, eng *engine.Engine, cmd *cobra.Command, args []string) error {
		m, err := eng.Pin(ctx, memoriesUser, args[0], pinned)
		if err != nil {
			return err
		}
		verb := "unpinned"
		if m.IsPinned {
			verb = "pinned"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, m.ID)
		return nil
	}
}

func printMemories(w io.Writer, memories []store.Memory) {
	if len(memories) == 0 {
		fmt.Fprintln(w, "No memories found.")
		return
	}
	for _, m := range memories {
		pin := ""
		if m.IsPinned {
			pin = " pinned"
		}
		fmt.Fprintf(w, "%s  [%s/%s %.2f%s]  %s\n", m.ID, m.Category, m.MemoryType, m.EffectiveScore(), pin, m.Content)
	}
}
