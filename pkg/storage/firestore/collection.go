package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

type ToFirestoreFunc[T any] func(*T) map[string]interface{}
type FromFirestoreFunc[T any] func(map[string]interface{}) *T

type Collection[T any] struct {
	Ref           *firestore.CollectionRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (c *Collection[T]) Doc(id string) *DocumentRef[T] {
	return &DocumentRef[T]{
		Ref:           c.Ref.Doc(id),
		ToFirestore:   c.ToFirestore,
		FromFirestore: c.FromFirestore,
	}
}

func (c *Collection[T]) NewDoc() *DocumentRef[T] {
	return &DocumentRef[T]{
		Ref:           c.Ref.NewDoc(),
		ToFirestore:   c.ToFirestore,
		FromFirestore: c.FromFirestore,
	}
}

// All runs q (which must be built from c.Ref) and decodes every result.
func (c *Collection[T]) All(ctx context.Context, q firestore.Query) ([]*T, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*T
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c.FromFirestore(snap.Data()))
	}
	return out, nil
}

type DocumentRef[T any] struct {
	Ref           *firestore.DocumentRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (d *DocumentRef[T]) ID() string {
	return d.Ref.ID
}

func (d *DocumentRef[T]) Get(ctx context.Context) (*T, error) {
	snap, err := d.Ref.Get(ctx)
	if err != nil {
		return nil, err
	}
	return d.FromFirestore(snap.Data()), nil
}

// Create fails with codes.AlreadyExists if the document exists.
func (d *DocumentRef[T]) Create(ctx context.Context, data *T) error {
	_, err := d.Ref.Create(ctx, d.ToFirestore(data))
	return err
}

func (d *DocumentRef[T]) Set(ctx context.Context, data *T) error {
	m := d.ToFirestore(data)
	_, err := d.Ref.Set(ctx, m, firestore.MergeAll)
	return err
}

// TxGet reads the document inside a transaction.
func (d *DocumentRef[T]) TxGet(tx *firestore.Transaction) (*T, error) {
	snap, err := tx.Get(d.Ref)
	if err != nil {
		return nil, err
	}
	return d.FromFirestore(snap.Data()), nil
}

// TxSet overwrites the document inside a transaction.
func (d *DocumentRef[T]) TxSet(tx *firestore.Transaction, data *T) error {
	return tx.Set(d.Ref, d.ToFirestore(data))
}

func (d *DocumentRef[T]) TxCreate(tx *firestore.Transaction, data *T) error {
	return tx.Create(d.Ref, d.ToFirestore(data))
}
