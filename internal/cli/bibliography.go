package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/citerender/internal/bib"
	"github.com/dgallion1/citerender/internal/export"
	"github.com/dgallion1/citerender/internal/pipeline"
)

type bibliographyOptions struct {
	style string
	items string
	docx  string
	title string
	text  bool
}

func newBibliographyCommand(root *rootOptions) *cobra.Command {
	opts := &bibliographyOptions{}
	cmd := &cobra.Command{
		Use:     "bibliography [flags]",
		Aliases: []string{"bib"},
		Short:   "Render a reference list for every item in a reference file",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBibliography(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.style, "style", "s", "", "CSL style file")
	cmd.Flags().StringVarP(&opts.items, "items", "i", "", "CSL-JSON or CSL-YAML reference file")
	cmd.Flags().StringVar(&opts.docx, "docx", "", "write a DOCX document to this path instead of printing")
	cmd.Flags().StringVar(&opts.title, "title", "References", "DOCX title paragraph")
	cmd.Flags().BoolVar(&opts.text, "text", false, "print plain-text entries, one per line")
	cmd.MarkFlagRequired("style")
	cmd.MarkFlagRequired("items")
	return cmd
}

func runBibliography(cmd *cobra.Command, root *rootOptions, opts *bibliographyOptions) error {
	style, err := os.ReadFile(opts.style)
	if err != nil {
		return err
	}
	recs, err := readRecords(opts.items)
	if err != nil {
		return err
	}
	items, err := bib.DecodeItems(recs.Raw)
	if err != nil {
		return err
	}
	locales, err := root.registry()
	if err != nil {
		return err
	}

	renderer := pipeline.NewBibliographyRenderer(pipeline.NewCiteprocEngine, locales, root.lang, root.logger(cmd.ErrOrStderr()))
	entries, err := renderer.Render(recs.Keys, items, string(style))
	if err != nil {
		return fmt.Errorf("bibliography: %w", err)
	}

	switch {
	case opts.docx != "":
		f, err := os.Create(opts.docx)
		if err != nil {
			return err
		}
		if err := export.WriteDOCX(f, opts.title, entries); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case opts.text:
		out := cmd.OutOrStdout()
		for _, e := range entries {
			line, err := export.PlainText(e)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, line)
		}
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Entries []string `json:"entries"`
	}{entries})
}
