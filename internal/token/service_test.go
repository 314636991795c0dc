package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]string)}
}

func (f *fakeStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeStore) GetDel(ctx context.Context, key string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return "", false, nil
	}
	delete(f.values, key)
	return value, true, nil
}

func TestConsumeAnonymousToken(t *testing.T) {
	svc := NewService(newFakeStore())

	tok, err := svc.Issue(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	owner, err := svc.Consume(context.Background(), tok)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if owner != nil {
		t.Fatalf("expected anonymous token, got owner %s", owner)
	}
}

func TestConsumeOwnedToken(t *testing.T) {
	svc := NewService(newFakeStore())
	userID := uuid.New()

	tok, err := svc.Issue(context.Background(), &userID, time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	owner, err := svc.Consume(context.Background(), tok)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if owner == nil || *owner != userID {
		t.Fatalf("expected owner %s, got %v", userID, owner)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	svc := NewService(newFakeStore())

	tok, err := svc.Issue(context.Background(), nil, time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := svc.Consume(context.Background(), tok); err != nil {
		t.Fatalf("first Consume returned error: %v", err)
	}
	if _, err := svc.Consume(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("second Consume: expected ErrInvalidToken, got %v", err)
	}
}

func TestConsumeUnknownToken(t *testing.T) {
	svc := NewService(newFakeStore())

	if _, err := svc.Consume(context.Background(), uuid.NewString()); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestConcurrentConsumersExactlyOneWins(t *testing.T) {
	svc := NewService(newFakeStore())

	tok, err := svc.Issue(context.Background(), nil, time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	const callers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, invalid := 0, 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Consume(context.Background(), tok)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInvalidToken):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", successes)
	}
	if invalid != callers-1 {
		t.Fatalf("expected %d invalid results, got %d", callers-1, invalid)
	}
}

func TestIssueSignalsStoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	svc := NewService(store)

	if _, err := svc.Issue(context.Background(), nil, time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
