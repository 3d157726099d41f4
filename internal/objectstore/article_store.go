// Package objectstore keeps articles in a NATS JetStream object store.
//
// An article is stored under its key. An optional speech override, the text
// to speak instead of the article body, is stored next to it under the same
// key with the ".speech" suffix.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/read-aloud/internal/core"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// SpeechSuffix is appended to an article key to name its speech override.
const SpeechSuffix = ".speech"

// ErrEmptyKey indicates that an article key is empty.
var ErrEmptyKey = errors.New("article key cannot be empty")

// NatsArticleStore implements core.ArticleStore using NATS JetStream.
type NatsArticleStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsArticleStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Articles to read aloud in the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsArticleStore{bucket: bucketName, store: store}, nil
}

// Article fetches the article body and, if present, its speech override.
func (n *NatsArticleStore) Article(ctx context.Context, key string) (core.Article, error) {
	if key == "" {
		return core.Article{}, ErrEmptyKey
	}

	content, err := n.store.GetString(key, nats.Context(ctx))
	if err != nil {
		return core.Article{}, fmt.Errorf("failed to get article '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	override, err := n.store.GetString(key+SpeechSuffix, nats.Context(ctx))
	if err != nil {
		if !errors.Is(err, nats.ErrObjectNotFound) {
			return core.Article{}, fmt.Errorf("failed to get speech override for '%s': %w", key, err)
		}

		override = ""
	}

	return core.Article{Content: content, SpeechOverride: override}, nil
}

// PutArticle stores the article body and its speech override. An empty
// override removes any override stored earlier.
func (n *NatsArticleStore) PutArticle(ctx context.Context, key string, article core.Article) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := n.store.PutString(key, article.Content, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put article '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	overrideKey := key + SpeechSuffix

	if article.SpeechOverride == "" {
		err = n.store.Delete(overrideKey)
		if err != nil && !errors.Is(err, nats.ErrObjectNotFound) {
			return fmt.Errorf("failed to delete speech override for '%s': %w", key, err)
		}

		return nil
	}

	_, err = n.store.PutString(overrideKey, article.SpeechOverride, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put speech override for '%s': %w", key, err)
	}

	return nil
}
