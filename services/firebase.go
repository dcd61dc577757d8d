package services

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/blkluv/dentist-ai/models"
)

// FirestoreOptions selects credentials the same way in every environment:
// inline JSON first, then a credentials file, then application defaults.
type FirestoreOptions struct {
	CredentialsJSON string
	CredentialsFile string
	Collection      string
}

// docSetter is the single Firestore write the store performs.
type docSetter interface {
	set(ctx context.Context, collection, id string, data any) error
	close() error
}

type firestoreBackend struct {
	client *firestore.Client
}

func (b firestoreBackend) set(ctx context.Context, collection, id string, data any) error {
	_, err := b.client.Collection(collection).Doc(id).Set(ctx, data)
	return err
}

func (b firestoreBackend) close() error {
	return b.client.Close()
}

// CallRecordStore writes one audit document per finished call. Records are
// never read back by the bridge.
type CallRecordStore struct {
	backend    docSetter
	collection string
}

// NewCallRecordStore connects to Firestore using the configured credentials.
func NewCallRecordStore(ctx context.Context, opts FirestoreOptions) (*CallRecordStore, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}

	collection := opts.Collection
	if collection == "" {
		collection = "calls"
	}
	return &CallRecordStore{backend: firestoreBackend{client: client}, collection: collection}, nil
}

// SaveCallRecord stores the record keyed by its session id.
func (s *CallRecordStore) SaveCallRecord(ctx context.Context, record models.CallRecord) error {
	if record.SessionID == "" {
		return errors.New("call record has no session id")
	}
	if err := s.backend.set(ctx, s.collection, record.SessionID, record); err != nil {
		return fmt.Errorf("save call record %s: %w", record.SessionID, err)
	}
	return nil
}

// Close releases the Firestore client.
func (s *CallRecordStore) Close() error {
	if s.backend != nil {
		return s.backend.close()
	}
	return nil
}
