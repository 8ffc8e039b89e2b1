package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/examprep/docpipe"
	"github.com/hazyhaar/examprep/ingest"
	"github.com/hazyhaar/examprep/kit"
)

var (
	extractSyllabus string
	extractAnalyze  bool
	extractEnrich   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [flags] PAPER...",
	Short: "Extract one batch of exam papers and print JSON",
	Long: `Extract runs the papers (in argument order) and the optional syllabus
through the document pipeline and prints the joined texts. With --analyze
the texts go on to the structured-extraction model.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractSyllabus, "syllabus", "s", "", "syllabus file")
	extractCmd.Flags().BoolVarP(&extractAnalyze, "analyze", "a", false, "send the texts to the model")
	extractCmd.Flags().BoolVar(&extractEnrich, "enrich", false, "attach videos and playlists (with --analyze)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()
	ctx = kit.WithTransport(ctx, "cli")

	batch, err := readBatch(args, extractSyllabus)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var out any
	if extractAnalyze {
		if a.analyzer == nil {
			return errors.New("--analyze needs model credentials (llm.api_key or the provider's API key variable)")
		}
		out, err = a.analyzer.Analyze(ctx, batch, extractEnrich)
	} else {
		out, err = a.orch.Extract(ctx, batch)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func readBatch(papers []string, syllabus string) (ingest.Batch, error) {
	var b ingest.Batch
	for _, p := range papers {
		f, err := readFile(p)
		if err != nil {
			return ingest.Batch{}, err
		}
		b.Papers = append(b.Papers, f)
	}
	if syllabus != "" {
		f, err := readFile(syllabus)
		if err != nil {
			return ingest.Batch{}, err
		}
		b.Syllabus = &f
	}
	return b, nil
}

func readFile(path string) (docpipe.UploadedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return docpipe.UploadedFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	return docpipe.UploadedFile{
		Name:      filepath.Base(path),
		MediaType: mediaTypeForPath(path),
		Data:      data,
	}, nil
}

// mediaTypeForPath maps a file extension to the media type the pipeline
// routes on.
func mediaTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return docpipe.MediaTypePDF
	case ".docx":
		return docpipe.MediaTypeDocx
	}
	if mt, _, err := mime.ParseMediaType(mime.TypeByExtension(ext)); err == nil {
		return mt
	}
	return "application/octet-stream"
}
