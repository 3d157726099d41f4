package main

import (
	"fmt"

	"github.com/book-expert/read-aloud/internal/objectstore"
	"github.com/spf13/cobra"
)

func newPublishCmd(application *app) *cobra.Command {
	var overridePath string

	cmd := &cobra.Command{
		Use:   "publish KEY FILE",
		Short: "Store a Markdown article in the NATS article bucket under KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, application, args[0], args[1], overridePath)
		},
	}

	cmd.Flags().StringVar(&overridePath, flagOverride, "", flagOverrideDesc)

	return cmd
}

func runPublish(cmd *cobra.Command, application *app, key, path, overridePath string) error {
	natsCfg := application.cfg.NATS

	if natsCfg.ArticleObjectStoreBucket == "" {
		return errBucketEmpty
	}

	article, err := readArticle(path, overridePath)
	if err != nil {
		return err
	}

	natsConnection, jetstreamContext, err := connectNATS(natsCfg)
	if err != nil {
		return err
	}
	defer natsConnection.Close()

	store, err := objectstore.New(jetstreamContext, natsCfg.ArticleObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to open article store: %w", err)
	}

	err = store.PutArticle(cmd.Context(), key, article)
	if err != nil {
		return fmt.Errorf("failed to publish article: %w", err)
	}

	application.log.Info("Published article %s from %s", key, path)

	return nil
}
