package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/colporter/internal/epub"
	"github.com/dgallion1/colporter/internal/repo"
	"github.com/dgallion1/colporter/internal/repo/archive"
	"github.com/dgallion1/colporter/internal/repo/sqlite"
	"github.com/dgallion1/colporter/internal/resolve"
	"github.com/dgallion1/colporter/internal/walk"
)

var (
	exportDB         string
	exportArchiveURL string
	exportAPIKey     string
	exportFile       string
	exportCycleGuard bool
	exportMaxErrors  int
)

var exportCmd = &cobra.Command{
	Use:   "export <id> <version>",
	Short: "Export one collection or module as an EPUB package",
	Long: `Walks the content tree rooted at <id> <version>, rewrites every
in-markup reference to a package-relative path, and writes the result as an
EPUB. Pass "latest" as the version to export the current one.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDB, "db", "", "path to a legacy snapshot database")
	exportCmd.Flags().StringVar(&exportArchiveURL, "archive-url", "", "base URL of a hosted archive API")
	exportCmd.Flags().StringVar(&exportAPIKey, "api-key", "", "bearer key for the archive API")
	exportCmd.Flags().StringVar(&exportFile, "file", "", "output file path (default stdout)")
	exportCmd.Flags().BoolVar(&exportCycleGuard, "cycle-guard", false, "fail on any revisited document instead of only filtering direct self-references")
	exportCmd.Flags().IntVar(&exportMaxErrors, "max-ref-errors", 0, "abort once this many reference errors accumulate (0 = unlimited)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	id, version := args[0], args[1]
	if version == "latest" {
		version = ""
	}

	log := newLogger(cmd.ErrOrStderr())

	var rp repo.Repository
	switch {
	case exportDB != "" && exportArchiveURL != "":
		return fmt.Errorf("--db and --archive-url are mutually exclusive")
	case exportDB != "":
		store, err := sqlite.Open(exportDB)
		if err != nil {
			return err
		}
		defer store.Close()
		rp = store
	case exportArchiveURL != "":
		client := archive.NewClient(exportArchiveURL, exportAPIKey)
		defer client.Close()
		rp = client
	default:
		return fmt.Errorf("one of --db or --archive-url is required")
	}

	var payloads repo.ResourcePayloader
	if p, ok := rp.(repo.ResourcePayloader); ok {
		payloads = p
	}

	var out io.Writer = cmd.OutOrStdout()
	if exportFile != "" {
		f, err := os.Create(exportFile)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportFile, err)
		}
		defer f.Close()
		out = f
	}

	ctx := context.Background()
	walker := walk.New(rp, resolve.New(rp), walk.Options{CycleGuard: exportCycleGuard})
	res, err := epub.Write(ctx, out, epub.Meta{Identifier: id + "@" + args[1]},
		walker.Flatten(ctx, id, version), payloads, epub.Options{MaxRefErrors: exportMaxErrors})

	for _, re := range res.RefErrors {
		log.Warn("unresolved reference", "document", re.DocumentID, "ref", re.Ref, "kind", re.Kind)
	}
	for _, warn := range res.Warnings {
		log.Warn(warn)
	}
	if err != nil {
		if exportFile != "" {
			os.Remove(exportFile)
		}
		return err
	}

	log.Info("export complete",
		"documents", res.Documents,
		"resources", res.Resources,
		"ref_errors", len(res.RefErrors),
	)
	return nil
}
