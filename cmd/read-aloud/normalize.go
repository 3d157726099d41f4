package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/read-aloud/internal/core"
	"github.com/book-expert/read-aloud/internal/tts/text"
	"github.com/spf13/cobra"
)

// errNothingToSpeak indicates that an article normalizes to empty text.
var errNothingToSpeak = errors.New("article has no speakable text")

func newNormalizeCmd(application *app) *cobra.Command {
	var overridePath string

	cmd := &cobra.Command{
		Use:   "normalize FILE",
		Short: "Print the speakable text of a Markdown article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			speech, err := prepareSpeech(application, args[0], overridePath)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), speech)
			if err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&overridePath, flagOverride, "", flagOverrideDesc)

	return cmd
}

// readArticle loads an article body and, when overridePath is set, its
// speech override.
func readArticle(path, overridePath string) (core.Article, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return core.Article{}, fmt.Errorf("failed to read article '%s': %w", path, err)
	}

	article := core.Article{Content: string(content)}

	if overridePath == "" {
		return article, nil
	}

	override, err := os.ReadFile(overridePath)
	if err != nil {
		return core.Article{}, fmt.Errorf("failed to read speech override '%s': %w", overridePath, err)
	}

	article.SpeechOverride = string(override)

	return article, nil
}

func newNormalizer(application *app) (*text.Normalizer, error) {
	normalizer, err := text.NewNormalizer(application.cfg.Normalizer.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to build normalizer: %w", err)
	}

	return normalizer, nil
}

func prepareSpeech(application *app, path, overridePath string) (string, error) {
	article, err := readArticle(path, overridePath)
	if err != nil {
		return "", err
	}

	normalizer, err := newNormalizer(application)
	if err != nil {
		return "", err
	}

	speech := normalizer.Prepare(article.Content, article.SpeechOverride)
	if speech == "" {
		return "", fmt.Errorf("%w: '%s'", errNothingToSpeak, path)
	}

	return speech, nil
}
