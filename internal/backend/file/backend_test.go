package file

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warpcomdev/inferpipe/internal/backend"
	"github.com/warpcomdev/inferpipe/internal/predict"
)

func TestInferReturnsIndexedRecord(t *testing.T) {
	want := &predict.Record{Location: "frame-1.jpg"}
	b := New(map[string]*predict.Record{"frame-1.jpg": want})

	pending, err := b.Infer(context.Background(), nil, "frame-1.jpg")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	got, err := pending.Await(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if got != want {
		t.Fatalf("Await() = %v, want the indexed record %v", got, want)
	}
}

func TestInferUnknownFrameErrors(t *testing.T) {
	b := New(map[string]*predict.Record{})

	_, err := b.Infer(context.Background(), nil, "missing.jpg")
	if err == nil {
		t.Fatal("Infer should error for a frame with no recorded prediction")
	}
	var inferErr *backend.InferError
	if !errors.As(err, &inferErr) {
		t.Fatalf("error = %v, want a *backend.InferError", err)
	}
	if inferErr.Code != "not_recorded" {
		t.Fatalf("Code = %q, want %q", inferErr.Code, "not_recorded")
	}
}

func TestCloseIsNoOp(t *testing.T) {
	b := New(nil)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
