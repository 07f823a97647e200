package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type stubProvider struct {
	faces []Face
}

func (s *stubProvider) DetectFaces(ctx context.Context, image []byte) ([]Face, error) {
	return s.faces, nil
}

func TestLazy_ConstructsOnce(t *testing.T) {
	var calls atomic.Int32
	stub := &stubProvider{faces: []Face{{Index: 0}}}
	lazy := NewLazy(func(ctx context.Context) (Provider, error) {
		calls.Add(1)
		return stub, nil
	})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			faces, err := lazy.DetectFaces(context.Background(), []byte("img"))
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if len(faces) != 1 {
				t.Errorf("expected 1 face, got %d", len(faces))
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected factory to run once, ran %d times", got)
	}
}

func TestLazy_RetriesAfterFailure(t *testing.T) {
	var calls int
	lazy := NewLazy(func(ctx context.Context) (Provider, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("server starting")
		}
		return &stubProvider{}, nil
	})

	if _, err := lazy.Get(context.Background()); err == nil {
		t.Fatal("expected first Get to fail")
	}
	if _, err := lazy.Get(context.Background()); err != nil {
		t.Fatalf("expected second Get to succeed, got %v", err)
	}
	if _, err := lazy.Get(context.Background()); err != nil {
		t.Fatalf("expected cached provider, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 factory calls, got %d", calls)
	}
}
