// Package cli implements the citerender command line, which runs the same
// annotation and bibliography pipelines as the HTTP service against local
// files.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/citerender/internal/bib"
	"github.com/dgallion1/citerender/internal/citeproc"
)

type rootOptions struct {
	localeDir string
	lang      string
	verbose   bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "citerender",
		Short:         "Render CSL citations and bibliographies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.localeDir, "locale-dir", os.Getenv("LOCALE_DIR"), "directory with extra locales-*.xml files")
	root.PersistentFlags().StringVar(&opts.lang, "lang", "en-US", "default locale")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log per-marker decisions")

	root.AddCommand(
		newAnnotateCommand(opts),
		newBibliographyCommand(opts),
		newLocalesCommand(opts),
	)
	return root
}

// Execute runs the command line with os.Args.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *rootOptions) registry() (*citeproc.Registry, error) {
	return citeproc.NewRegistry(o.localeDir)
}

// readRecords loads a reference file. JSON objects keep their key order;
// anything else is read as CSL-YAML.
func readRecords(path string) (*bib.Records, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		var recs bib.Records
		if err := recs.UnmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &recs, nil
	}
	recs, err := bib.DecodeRecordsYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// formatFromPath picks a document format from a file extension.
func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	}
	return "html"
}
