// Package core defines the boundary types and interfaces shared by the read-aloud
// components: the platform speech capability, the durable key-value store and
// the article store.
package core

import "context"

// Voice describes an entry in the platform voice catalog.
// Voices are owned by the platform; callers only keep references to them.
type Voice struct {
	ID       string
	Name     string
	Language string
	Default  bool
}

// SpeechSynthesizer is the platform speech-synthesis capability.
//
// Implementations must not deliver utterance events synchronously from inside
// Speak, Cancel, Pause or Resume. Submitting a new utterance supersedes any
// speech that is still in progress.
type SpeechSynthesizer interface {
	Speak(utterance *Utterance) error
	Cancel()
	Pause()
	Resume()
	Voices() []Voice
	// OnVoicesChanged registers fn to be called whenever the catalog changes.
	// The returned function removes the subscription.
	OnVoicesChanged(fn func()) (unsubscribe func())
}

// KeyValueStore is a durable string key-value store that survives across sessions.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Article is a raw article body paired with an optional author-written speech
// override. An empty SpeechOverride means no override.
type Article struct {
	Content        string
	SpeechOverride string
}

// ArticleStore fetches and stores articles by key.
type ArticleStore interface {
	Article(ctx context.Context, key string) (Article, error)
	PutArticle(ctx context.Context, key string, article Article) error
}
