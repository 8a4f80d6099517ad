package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/citerender/internal/bib"
	"github.com/dgallion1/citerender/internal/doctree"
	"github.com/dgallion1/citerender/internal/parser"
	"github.com/dgallion1/citerender/internal/pipeline"
)

type annotateOptions struct {
	style  string
	items  string
	locale string
	format string
}

func newAnnotateCommand(root *rootOptions) *cobra.Command {
	opts := &annotateOptions{}
	cmd := &cobra.Command{
		Use:   "annotate [flags] DOCUMENT",
		Short: "Annotate citation markers and print the document's sections as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.style, "style", "s", "", "CSL style file")
	cmd.Flags().StringVarP(&opts.items, "items", "i", "", "CSL-JSON or CSL-YAML reference file")
	cmd.Flags().StringVar(&opts.locale, "locale", "", "CSL locale file overriding the built-in one")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "document format: html or markdown (default from extension)")
	cmd.MarkFlagRequired("style")
	cmd.MarkFlagRequired("items")
	return cmd
}

func runAnnotate(cmd *cobra.Command, root *rootOptions, opts *annotateOptions, docPath string) error {
	style, err := os.ReadFile(opts.style)
	if err != nil {
		return err
	}
	recs, err := readRecords(opts.items)
	if err != nil {
		return err
	}
	locale, err := readOptional(opts.locale)
	if err != nil {
		return err
	}

	format := opts.format
	if format == "" {
		format = formatFromPath(docPath)
	}
	p, err := parser.ForFormat(format)
	if err != nil {
		return err
	}
	f, err := os.Open(docPath)
	if err != nil {
		return err
	}
	defer f.Close()
	doc, err := p.Parse(f)
	if err != nil {
		return err
	}

	locales, err := root.registry()
	if err != nil {
		return err
	}
	log := root.logger(cmd.ErrOrStderr())
	annotator := pipeline.NewAnnotator(pipeline.NewCiteprocEngine, locales, root.lang, log)
	res, err := annotator.Annotate(pipeline.AnnotateRequest{
		Catalog:   bib.NewCatalog(recs.Raw),
		StyleXML:  string(style),
		LocaleXML: locale,
		Document:  doc,
	})
	if err != nil {
		return fmt.Errorf("annotate %s: %w", docPath, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Sections []doctree.SectionRecord `json:"sections"`
	}{res.Sections})
}
