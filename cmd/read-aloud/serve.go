package main

import (
	"errors"
	"fmt"

	"github.com/book-expert/read-aloud/internal/objectstore"
	"github.com/book-expert/read-aloud/internal/preferences"
	"github.com/book-expert/read-aloud/internal/tts/playback"
	"github.com/book-expert/read-aloud/internal/worker"
	"github.com/spf13/cobra"
)

var (
	// errSubjectEmpty indicates that no request subject is configured.
	errSubjectEmpty = errors.New("nats text_processed_subject cannot be empty")
	// errBucketEmpty indicates that no article bucket is configured.
	errBucketEmpty = errors.New("nats article_object_store_bucket cannot be empty")
)

func newServeCmd(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Read articles aloud as requests arrive over NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, application)
		},
	}
}

func runServe(cmd *cobra.Command, application *app) error {
	natsCfg := application.cfg.NATS

	if natsCfg.TextProcessedSubject == "" {
		return errSubjectEmpty
	}

	if natsCfg.ArticleObjectStoreBucket == "" {
		return errBucketEmpty
	}

	// 1. Connect to NATS and bind the article store
	natsConnection, jetstreamContext, err := connectNATS(natsCfg)
	if err != nil {
		return err
	}
	defer natsConnection.Close()

	store, err := objectstore.New(jetstreamContext, natsCfg.ArticleObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to open article store: %w", err)
	}

	backend, closePreferences, err := openPreferences(application, jetstreamContext)
	if err != nil {
		return err
	}
	defer closePreferences()

	// 2. Start the speech engine and the playback controller
	speechEngine, err := newEngine(application)
	if err != nil {
		return err
	}

	ctx, stop := runContext(cmd.Context())
	defer stop()

	controller := playback.New(speechEngine, preferences.New(backend), application.log,
		controllerOptions(application)...)

	defer func() {
		closeErr := controller.Close()
		if closeErr != nil {
			application.log.Warn("Failed to close playback controller: %v", closeErr)
		}
	}()

	speechEngine.Start(ctx)

	normalizer, err := newNormalizer(application)
	if err != nil {
		return err
	}

	// 3. Serve requests until interrupted
	natsWorker, err := worker.NewNatsWorker(natsConnection, natsCfg.TextProcessedSubject, store, normalizer,
		controller, application.log)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	application.log.System("read-aloud serving on subject %s", natsCfg.TextProcessedSubject)

	err = natsWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}

	return nil
}
