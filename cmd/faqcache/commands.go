package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/faqcache/internal/cli"
	"github.com/hyperjump/faqcache/internal/models"
)

var (
	queryVectorThreshold    float64
	queryRelevanceThreshold float64

	saveAnswer string

	feedbackSignal          int
	feedbackAnswer          string
	feedbackSaveThreshold   float64
	feedbackDeleteThreshold float64

	exportLimit  int
	historyLimit int
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Look up a cached answer",
	Long: `Look up a cached answer for a question. The question is all remaining arguments
joined by spaces, so quoting is optional.

Examples:
  faqcache query how do I reset my password
  faqcache query --vector-threshold 0.6 --relevance-threshold 0.8 "opening hours"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.QueryRequest{Query: joinArgs(args)}
		if cmd.Flags().Changed("vector-threshold") {
			req.VectorThreshold = models.Float(queryVectorThreshold)
		}
		if cmd.Flags().Changed("relevance-threshold") {
			req.RelevanceThreshold = models.Float(queryRelevanceThreshold)
		}
		return withBackend(cmd, func(b backend) (any, error) {
			return b.Query(cmd.Context(), req)
		})
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <question> --answer <answer>",
	Short: "Save a question/answer pair unless a near-identical one exists",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.SaveRequest{Question: joinArgs(args), Answer: saveAnswer}
		return withBackend(cmd, func(b backend) (any, error) {
			return b.Save(cmd.Context(), req)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <question>",
	Short: "Delete the closest matching cached question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.DeleteRequest{Question: joinArgs(args)}
		return withBackend(cmd, func(b backend) (any, error) {
			return b.Delete(cmd.Context(), req)
		})
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <question> --signal 0|1",
	Short: "Apply a user verdict to the cache",
	Long: `Apply a user verdict to the cache. --signal 1 means the answer was good and saves
the pair (requires --answer); --signal 0 means it was bad and deletes the closest match.

Examples:
  faqcache feedback --signal 1 --answer "Use the reset link" how do I reset my password
  faqcache feedback --signal 0 how do I reset my password`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.FeedbackRequest{
			CacheSignal: feedbackSignal,
			Query:       joinArgs(args),
			Answer:      feedbackAnswer,
		}
		if cmd.Flags().Changed("save-threshold") {
			req.SaveThreshold = models.Float(feedbackSaveThreshold)
		}
		if cmd.Flags().Changed("delete-threshold") {
			req.DeleteThreshold = models.Float(feedbackDeleteThreshold)
		}
		return withBackend(cmd, func(b backend) (any, error) {
			return b.Feedback(cmd.Context(), req)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(b backend) (any, error) {
			return b.Stats(cmd.Context())
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "List cached entries with answer previews",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(b backend) (any, error) {
			return b.Export(cmd.Context(), exportLimit)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent maintenance events, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(b backend) (any, error) {
			return b.History(cmd.Context(), historyLimit)
		})
	},
}

func init() {
	queryCmd.Flags().Float64Var(&queryVectorThreshold, "vector-threshold", 0, "minimum vector similarity in [0,1] (default from config)")
	queryCmd.Flags().Float64Var(&queryRelevanceThreshold, "relevance-threshold", 0, "minimum relevance score in [0,1] (default from config)")

	saveCmd.Flags().StringVarP(&saveAnswer, "answer", "a", "", "answer text (required)")
	_ = saveCmd.MarkFlagRequired("answer")

	feedbackCmd.Flags().IntVarP(&feedbackSignal, "signal", "s", 0, "1 = good answer (save), 0 = bad answer (delete)")
	feedbackCmd.Flags().StringVarP(&feedbackAnswer, "answer", "a", "", "answer text, required with --signal 1")
	feedbackCmd.Flags().Float64Var(&feedbackSaveThreshold, "save-threshold", 0, "duplicate threshold for saves (default from config)")
	feedbackCmd.Flags().Float64Var(&feedbackDeleteThreshold, "delete-threshold", 0, "match threshold for deletes (default from config)")
	_ = feedbackCmd.MarkFlagRequired("signal")

	exportCmd.Flags().IntVarP(&exportLimit, "limit", "n", 0, "maximum entries to list (0 = all)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "maximum events to list")

	rootCmd.AddCommand(queryCmd, saveCmd, deleteCmd, feedbackCmd, statsCmd, exportCmd, historyCmd)
}

// withBackend opens the backend, runs fn and writes its result in the selected format.
func withBackend(cmd *cobra.Command, fn func(b backend) (any, error)) error {
	b, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	v, err := fn(b)
	if err != nil {
		return describeError(err)
	}
	return writeResult(cmd, v)
}

func writeResult(cmd *cobra.Command, v any) error {
	return cli.Write(cmd.OutOrStdout(), v, output)
}

// describeError adds a hint when the server cannot be reached.
func describeError(err error) error {
	if serverURL != "" && isConnectionRefused(err) {
		return fmt.Errorf("%w\nis the server running at %s? start it with 'faqcache server' or pass --server=\"\"", err, serverURL)
	}
	return err
}

func isConnectionRefused(err error) bool {
	return err != nil && strings.Contains(err.Error(), "connection refused")
}
