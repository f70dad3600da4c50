package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zombar/truthlens/internal/app"
	"github.com/zombar/truthlens/internal/extract"
	"github.com/zombar/truthlens/internal/models"
	"github.com/zombar/truthlens/internal/pipeline"
	"github.com/zombar/truthlens/internal/scraper"
)

type classifyFlags struct {
	title       string
	description string
	file        string
	url         string
}

// classifyOutput is the JSON written to stdout
type classifyOutput struct {
	Prediction string `json:"prediction"`
	*pipeline.Result
}

func newClassifyCmd(opts *options) *cobra.Command {
	var f classifyFlags

	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Classify one piece of content and print the verdict as JSON",
		Example: `  truthlens classify --title "Cura milagrosa" "El gobierno oculta una cura..."
  truthlens classify --file noticia.pdf
  truthlens classify --url https://example.com/noticia`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = strings.TrimSpace(args[0])
			}
			return runClassify(cmd, opts, f, text)
		},
	}

	cmd.Flags().StringVar(&f.title, "title", "", "headline of the news item")
	cmd.Flags().StringVar(&f.description, "description", "", "summary of the news item")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "PDF, DOCX or TXT document to classify")
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "news article URL to scrape and classify")
	cmd.MarkFlagsMutuallyExclusive("file", "url")
	return cmd
}

func runClassify(cmd *cobra.Command, opts *options, f classifyFlags, text string) error {
	logger, err := newLogger(opts.cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, opts.cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	req, err := buildRequest(ctx, a, f, text)
	if err != nil {
		return err
	}

	result, err := a.Pipeline.Classify(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(classifyOutput{
		Prediction: pipeline.PredictionName(result.Decision.Label),
		Result:     result,
	})
}

// buildRequest turns the command input into a pipeline request
func buildRequest(ctx context.Context, a *app.App, f classifyFlags, text string) (pipeline.Request, error) {
	switch {
	case f.file != "":
		if text != "" {
			return pipeline.Request{}, &models.InvalidRequestError{Reason: "pass either text or --file, not both"}
		}
		content, err := os.ReadFile(f.file)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("failed to read %s: %w", f.file, err)
		}
		name := filepath.Base(f.file)
		body, err := extract.Text(name, content)
		if err != nil {
			return pipeline.Request{}, err
		}
		return pipeline.Request{
			Input:     models.ClassificationInput{Title: f.title, Body: body, Description: f.description},
			Source:    models.SourceFile,
			SourceRef: name,
			FileInfo:  fmt.Sprintf("%s (%d bytes)", name, len(content)),
		}, nil

	case f.url != "":
		if text != "" {
			return pipeline.Request{}, &models.InvalidRequestError{Reason: "pass either text or --url, not both"}
		}
		if _, err := scraper.ParseURL(f.url); err != nil {
			return pipeline.Request{}, err
		}
		article, err := a.Scraper.Fetch(ctx, f.url)
		if err != nil {
			return pipeline.Request{}, err
		}
		return pipeline.Request{
			Input:     article.Input(),
			Source:    models.SourceURL,
			SourceRef: f.url,
		}, nil

	default:
		input := models.ClassificationInput{Title: f.title, Body: text, Description: f.description}
		if input.IsEmpty() {
			return pipeline.Request{}, &models.InvalidRequestError{Reason: "nothing to classify, pass text, --file or --url"}
		}
		return pipeline.Request{Input: input, Source: models.SourceManual}, nil
	}
}
