package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

const refScheme = "gs://"

// StorageAdapter stores onboarding documents in a single Cloud Storage bucket.
// Refs handed back to callers are gs://bucket/object URIs.
type StorageAdapter struct {
	Client *storage.Client
	Bucket string
}

func NewStorageAdapter(client *storage.Client, bucket string) *StorageAdapter {
	return &StorageAdapter{Client: client, Bucket: bucket}
}

func (a *StorageAdapter) Put(ctx context.Context, objectName string, data []byte) (string, error) {
	wc := a.Client.Bucket(a.Bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType(objectName)
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return refScheme + a.Bucket + "/" + objectName, nil
}

func (a *StorageAdapter) Get(ctx context.Context, ref string) ([]byte, error) {
	bucket, object, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	rc, err := a.Client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ParseRef splits a gs://bucket/object ref.
func ParseRef(ref string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(ref, refScheme)
	if !ok {
		return "", "", fmt.Errorf("unsupported blob ref %q", ref)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", errors.New("blob ref must be gs://bucket/object")
	}
	return bucket, object, nil
}

func contentType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	}
	return "application/octet-stream"
}
