package discovery

import (
	"context"
	"fmt"
)

// ObjectLister lists object keys under a prefix.
type ObjectLister interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// S3 lists video objects in the configured bucket. Refs are object keys.
type S3 struct {
	Lister ObjectLister
	Prefix string
}

func (s S3) Name() string { return "s3" }

func (s S3) Discover(ctx context.Context) ([]string, error) {
	if s.Lister == nil {
		return nil, nil
	}
	keys, err := s.Lister.ListKeys(ctx, s.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	var refs []string
	for _, key := range keys {
		if IsVideoFile(key) {
			refs = append(refs, key)
		}
	}
	return refs, nil
}
