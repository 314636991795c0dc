package provider

import (
	"context"
	"sync"
	"testing"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Upload(ctx context.Context, obj Object) (Stored, error) {
	return Stored{Provider: s.name}, nil
}
func (s *stubProvider) Download(ctx context.Context, fileID string) ([]byte, error) {
	return nil, nil
}
func (s *stubProvider) Delete(ctx context.Context, fileID string) error { return nil }
func (s *stubProvider) Stat(ctx context.Context, fileID string) (Stored, error) {
	return Stored{}, nil
}
func (s *stubProvider) Name() string { return s.name }

func TestHandleReplaceSwapsProvider(t *testing.T) {
	first := &stubProvider{name: "first"}
	second := &stubProvider{name: "second"}

	h := NewHandle(first)
	if h.Current().Name() != "first" {
		t.Fatalf("expected initial provider, got %s", h.Current().Name())
	}

	// A reference captured before the swap stays valid afterwards.
	captured := h.Current()

	h.Replace(second)
	if h.Current().Name() != "second" {
		t.Fatalf("expected swapped provider, got %s", h.Current().Name())
	}
	if captured.Name() != "first" {
		t.Fatalf("captured snapshot changed under the caller")
	}
}

func TestHandleConcurrentReadsDuringSwap(t *testing.T) {
	h := NewHandle(&stubProvider{name: "a"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p := h.Current()
				if name := p.Name(); name != "a" && name != "b" {
					t.Errorf("unexpected provider %q", name)
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			h.Replace(&stubProvider{name: "b"})
		} else {
			h.Replace(&stubProvider{name: "a"})
		}
	}
	wg.Wait()
}
