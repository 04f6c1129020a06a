package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/assessment"
	"github.com/spf13/cobra"
)

type assessOptions struct {
	audioPath string
	language  string
	phrase    string
	model     string
	asJSON    bool
}

func newAssessCmd(root *rootOptions) *cobra.Command {
	opts := &assessOptions{}
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess one recording against a phrase",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			service, err := newService(cfg, newNormalizer(cfg))
			if err != nil {
				return err
			}

			f, err := os.Open(opts.audioPath)
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := service.AssessStream(cmd.Context(), assessment.Request{
				Language: opts.language,
				Phrase:   opts.phrase,
				Model:    opts.model,
			}, f, filepath.Base(opts.audioPath))
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeResultJSON(cmd.OutOrStdout(), result)
			}
			return writeResultText(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&opts.audioPath, "audio", "a", "", "recording to assess (wav, or any format ffmpeg reads)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "language of the phrase, e.g. Spanish")
	cmd.Flags().StringVarP(&opts.phrase, "phrase", "p", "", "word or phrase to compare against")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model name (see 'pronounce models')")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}

func writeResultText(w io.Writer, result assessment.Result) error {
	_, err := fmt.Fprintf(w,
		"Response:\n%s\n\nEvaluation Time: %.2f seconds\nInput Tokens: %d\nTotal Tokens: %d\nModel Used: %s\n",
		result.Text,
		result.Elapsed.Seconds(),
		result.PromptTokens,
		result.TotalTokens,
		result.Model,
	)
	return err
}

func writeResultJSON(w io.Writer, result assessment.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"request_id":    result.RequestID,
		"text":          result.Text,
		"model":         result.Model,
		"provider":      result.Provider,
		"elapsed_ms":    result.Elapsed.Milliseconds(),
		"prompt_tokens": result.PromptTokens,
		"total_tokens":  result.TotalTokens,
		"rating":        result.Rating,
	})
}
