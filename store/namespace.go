package store

import (
	"context"
	"strings"
)

// Namespace shares one StateStore between workflows. Ids are stored under prefix
// and List only returns the ids of the namespace, without the prefix.
type Namespace struct {
	inner  StateStore
	prefix string
}

func NewNamespace(inner StateStore, prefix string) *Namespace {
	return &Namespace{inner: inner, prefix: prefix}
}

func (n *Namespace) Load(ctx context.Context, id string) ([]byte, error) {
	return n.inner.Load(ctx, n.prefix+id)
}

func (n *Namespace) Save(ctx context.Context, id string, state []byte) error {
	return n.inner.Save(ctx, n.prefix+id, state)
}

func (n *Namespace) Delete(ctx context.Context, id string) error {
	return n.inner.Delete(ctx, n.prefix+id)
}

func (n *Namespace) List(ctx context.Context) ([]string, error) {
	all, err := n.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, id := range all {
		if rest, ok := strings.CutPrefix(id, n.prefix); ok {
			ids = append(ids, rest)
		}
	}
	return ids, nil
}

// Close leaves the shared store open, its owner closes it
func (n *Namespace) Close() error {
	return nil
}
