// Package firestore implements docstore.Store on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"strategy-lifecycle-lab/internal/docstore"
)

const defaultPageSize = 100

// Store is a Firestore-backed implementation of docstore.Store.
type Store struct {
	client *firestore.Client
}

// New connects to Firestore for the given project. credentialsFile is a
// service-account key path; empty falls back to application default
// credentials. A missing key file fails immediately rather than on first use.
func New(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: firestore project id is required", docstore.ErrInvalidArgument)
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not found at %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

// Compile-time interface check.
var _ docstore.Store = (*Store)(nil)

// Put writes or overwrites a document.
func (s *Store) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, fields)
	if err != nil {
		return translate("put document", err)
	}
	return nil
}

// Create writes a document only if the ID is free.
func (s *Store) Create(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Create(ctx, fields)
	if err != nil {
		return translate("create document", err)
	}
	return nil
}

// Get retrieves a document's fields, or ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, translate("get document", err)
	}
	return snap.Data(), nil
}

// Delete removes a document. Firestore deletes are already idempotent.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	if err != nil {
		return translate("delete document", err)
	}
	return nil
}

// CompareAndPut performs the guarded write inside a Firestore transaction,
// which gives the strongly consistent read-compare-write the lifecycle
// CAS chain depends on.
func (s *Store) CompareAndPut(ctx context.Context, collection, id string, fields map[string]any, field, expect string) error {
	ref := s.client.Collection(collection).Doc(id)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current := ""
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			if v, ok := snap.Data()[field].(string); ok {
				current = v
			}
		case status.Code(err) == codes.NotFound:
			// Missing document compares as empty.
		default:
			return err
		}
		if current != expect {
			return docstore.ErrConditionFailed
		}
		return tx.Set(ref, fields)
	})
	if err != nil {
		if errors.Is(err, docstore.ErrConditionFailed) {
			return docstore.ErrConditionFailed
		}
		return translate("conditional put", err)
	}
	return nil
}

// Query returns one page of documents ordered by document ID.
func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) (*docstore.Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	fq := s.client.Collection(collection).Query
	if q.FilterField != "" {
		// An equality filter combined with the document-ID ordering below
		// needs a composite index (field + __name__) per filtered field.
		// Without one the first query fails FailedPrecondition with the
		// index creation link in the message.
		fq = fq.Where(q.FilterField, "==", q.FilterValue)
	}
	fq = fq.OrderBy(firestore.DocumentID, firestore.Asc)
	if q.StartAfter != "" {
		fq = fq.StartAfter(q.StartAfter)
	}
	// Fetch one extra to learn whether another page exists.
	fq = fq.Limit(limit + 1)

	iter := fq.Documents(ctx)
	defer iter.Stop()

	page := &docstore.Page{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, translate("query documents", err)
		}
		if len(page.Docs) == limit {
			page.NextCursor = page.Docs[limit-1].ID
			break
		}
		page.Docs = append(page.Docs, docstore.Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return page, nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// translate classifies a Firestore/gRPC error into the store taxonomy,
// keeping the native message for diagnostics. Nothing is swallowed.
func translate(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, docstore.ErrUnavailable, err)
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, docstore.ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", op, docstore.ErrAlreadyExists)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%s: %w: %v", op, docstore.ErrUnavailable, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%s: %w: %v", op, docstore.ErrPermissionDenied, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w: %v", op, docstore.ErrInvalidArgument, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
