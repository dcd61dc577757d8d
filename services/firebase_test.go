package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blkluv/dentist-ai/models"
)

type fakeDocs struct {
	collection, id string
	data           any
	err            error
	closed         bool
}

func (f *fakeDocs) set(_ context.Context, collection, id string, data any) error {
	f.collection, f.id, f.data = collection, id, data
	return f.err
}

func (f *fakeDocs) close() error {
	f.closed = true
	return nil
}

func TestCallRecordStore_Save(t *testing.T) {
	docs := &fakeDocs{}
	store := &CallRecordStore{backend: docs, collection: "calls"}

	rec := models.CallRecord{SessionID: "s-1", CallSID: "CA1", StartTime: time.Now(), CloseReason: "caller hung up"}
	if err := store.SaveCallRecord(context.Background(), rec); err != nil {
		t.Fatalf("SaveCallRecord: %v", err)
	}
	if docs.collection != "calls" || docs.id != "s-1" {
		t.Fatalf("wrote %s/%s", docs.collection, docs.id)
	}
	if got := docs.data.(models.CallRecord); got.CallSID != "CA1" {
		t.Fatalf("unexpected record %+v", got)
	}
	if err := store.Close(); err != nil || !docs.closed {
		t.Fatalf("close err=%v closed=%v", err, docs.closed)
	}
}

func TestCallRecordStore_Errors(t *testing.T) {
	store := &CallRecordStore{backend: &fakeDocs{err: errors.New("unavailable")}, collection: "calls"}
	if err := store.SaveCallRecord(context.Background(), models.CallRecord{}); err == nil {
		t.Fatalf("expected error for a record without session id")
	}
	if err := store.SaveCallRecord(context.Background(), models.CallRecord{SessionID: "s"}); err == nil {
		t.Fatalf("expected backend error to propagate")
	}
}
