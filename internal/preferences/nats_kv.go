package preferences

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NatsKVStore persists preferences in a NATS JetStream key-value bucket.
type NatsKVStore struct {
	bucket string
	kv     nats.KeyValue
}

// NewNATS binds to the bucket, creating it if it does not exist yet.
func NewNATS(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsKVStore, error) {
	kv, err := jetstreamContext.KeyValue(bucketName)
	if err != nil {
		if !errors.Is(err, nats.ErrBucketNotFound) {
			return nil, fmt.Errorf("failed to bind to key-value bucket '%s': %w", bucketName, err)
		}

		kv, err = jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucketName,
			Description: "Read-aloud preferences.",
			History:     1,
			Storage:     nats.FileStorage,
			Replicas:    1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create key-value bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsKVStore{bucket: bucketName, kv: kv}, nil
}

// Get returns the value stored under key.
func (n *NatsKVStore) Get(_ context.Context, key string) (string, bool, error) {
	entry, err := n.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("failed to get key '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	return string(entry.Value()), true, nil
}

// Set stores value under key.
func (n *NatsKVStore) Set(_ context.Context, key, value string) error {
	_, err := n.kv.PutString(key, value)
	if err != nil {
		return fmt.Errorf("failed to put key '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// Delete removes key.
func (n *NatsKVStore) Delete(_ context.Context, key string) error {
	err := n.kv.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// Close is a no-op; the connection belongs to the caller.
func (n *NatsKVStore) Close() error {
	return nil
}
