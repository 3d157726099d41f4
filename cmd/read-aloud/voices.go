package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/book-expert/read-aloud/internal/preferences"
	"github.com/book-expert/read-aloud/internal/tts/voices"
	"github.com/spf13/cobra"
)

func newVoicesCmd(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the voices of the speech engine; * marks the remembered one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVoices(cmd, application)
		},
	}
}

func runVoices(cmd *cobra.Command, application *app) error {
	speechEngine, err := newEngine(application)
	if err != nil {
		return err
	}

	backend, closePreferences, err := openPreferences(application, nil)
	if err != nil {
		return err
	}
	defer closePreferences()

	ctx, stop := runContext(cmd.Context())
	defer stop()

	err = speechEngine.LoadVoices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	selectedID, _, err := preferences.New(backend).VoiceID(ctx)
	if err != nil {
		application.log.Warn("Failed to load voice preference: %v", err)
	}

	return printCatalog(cmd, voices.NewCatalog(speechEngine.Voices()), selectedID)
}

func printCatalog(cmd *cobra.Command, catalog voices.Catalog, selectedID string) error {
	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	fmt.Fprintln(writer, " \tID\tLANGUAGE\tNAME")

	for _, voice := range catalog.List() {
		marker := " "
		if voice.ID == selectedID {
			marker = "*"
		}

		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", marker, voice.ID, voice.Language, voice.Name)
	}

	err := writer.Flush()
	if err != nil {
		return fmt.Errorf("failed to write voice list: %w", err)
	}

	return nil
}
