package main

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/internal/reconstruct"
)

var (
	reconstructCorpus     string
	reconstructCollection string
	reconstructNoBackup   bool
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct",
	Short: "Rebuild a collection from a question/answer spreadsheet",
	Long: `Rebuild a collection from a spreadsheet (.xlsx, .xlsm, .ods or .csv) with
"question" and "answer" columns. The live collection is only replaced once the new
one is fully built; any failure leaves it untouched.

Examples:
  faqcache reconstruct --corpus faq.xlsx
  faqcache reconstruct --corpus faq.csv --collection support --no-backup
  faqcache --server="" reconstruct            # direct mode, corpus.path from config`,
	Args: cobra.NoArgs,
	RunE: runReconstruct,
}

func init() {
	reconstructCmd.Flags().StringVarP(&reconstructCorpus, "corpus", "c", "", "corpus file (default corpus.path from config)")
	reconstructCmd.Flags().StringVar(&reconstructCollection, "collection", "", "collection to rebuild (default cache.collection from config)")
	reconstructCmd.Flags().BoolVar(&reconstructNoBackup, "no-backup", false, "skip the store backup before rebuilding")
	rootCmd.AddCommand(reconstructCmd)
}

func runReconstruct(cmd *cobra.Command, args []string) error {
	req := reconstructRequest()
	if req.CorpusPath == "" {
		return fmt.Errorf("no corpus given: pass --corpus or set corpus.path in the config")
	}

	b, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	if local, ok := b.(*localBackend); ok {
		local.progress = newProgress()
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "Reconstructing from %s on %s...\n", req.CorpusPath, serverURL)
	}

	res, err := b.Reconstruct(cmd.Context(), req)
	if err != nil {
		return describeError(err)
	}
	return writeResult(cmd, res)
}

// reconstructRequest builds the request from flags, falling back to the config.
func reconstructRequest() models.ReconstructRequest {
	req := models.ReconstructRequest{
		CorpusPath:     reconstructCorpus,
		CollectionName: reconstructCollection,
	}
	if req.CorpusPath == "" {
		req.CorpusPath = cfg.Corpus.Path
	}
	if reconstructNoBackup {
		req.BackupExisting = new(bool)
	}
	return req
}

// newProgress returns a progress callback that draws an embedding progress bar once
// the total is known.
func newProgress() reconstruct.ProgressFunc {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		_ = bar.Set(done)
	}
}
