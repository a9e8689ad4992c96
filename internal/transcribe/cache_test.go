package transcribe

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestCacheConstructsOnce(t *testing.T) {
	constructed := 0
	cache := NewCache(func(ctx context.Context, size Size) (Transcriber, error) {
		constructed++
		return &fixedTranscriber{}, nil
	})

	ctx := context.Background()
	first, err := cache.Get(ctx, SizeTiny)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}

	for i := 0; i < 10; i++ {
		handle, err := cache.Get(ctx, SizeTiny)
		if err != nil {
			t.Fatalf("Get error on call %d: %v", i, err)
		}
		if handle != first {
			t.Fatalf("call %d returned a different handle", i)
		}
	}

	if constructed != 1 {
		t.Errorf("factory ran %d times, want 1", constructed)
	}
}

func TestCacheSeparateSizes(t *testing.T) {
	cache := NewCache(func(ctx context.Context, size Size) (Transcriber, error) {
		return &fixedTranscriber{}, nil
	})

	ctx := context.Background()
	tiny, _ := cache.Get(ctx, SizeTiny)
	base, _ := cache.Get(ctx, SizeBase)

	if tiny == base {
		t.Error("different size tiers should get different handles")
	}
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	calls := 0
	cache := NewCache(func(ctx context.Context, size Size) (Transcriber, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("transient failure")
		}
		return &fixedTranscriber{}, nil
	})

	ctx := context.Background()
	if _, err := cache.Get(ctx, SizeTiny); err == nil {
		t.Fatal("expected first Get to fail")
	}
	if _, err := cache.Get(ctx, SizeTiny); err != nil {
		t.Fatalf("second Get should retry and succeed, got %v", err)
	}
	if calls != 2 {
		t.Errorf("factory ran %d times, want 2", calls)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	constructed := 0
	cache := NewCache(func(ctx context.Context, size Size) (Transcriber, error) {
		constructed++
		return &fixedTranscriber{}, nil
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(ctx, SizeTiny); err != nil {
				t.Errorf("Get error: %v", err)
			}
		}()
	}
	wg.Wait()

	if constructed != 1 {
		t.Errorf("factory ran %d times under concurrency, want 1", constructed)
	}
}

func TestModelForSize(t *testing.T) {
	tests := []struct {
		provider Provider
		size     Size
		want     string
	}{
		{ProviderOpenAI, SizeTiny, "whisper-1"},
		{ProviderOpenAI, SizeBase, "whisper-1"},
		{ProviderGemini, SizeTiny, "gemini-2.5-flash-lite"},
		{ProviderGemini, SizeBase, "gemini-2.5-flash"},
		{ProviderGemini, SizeSmall, "gemini-2.5-flash"},
		{ProviderGemini, Size("bogus"), "gemini-2.5-flash-lite"},
	}

	for _, tt := range tests {
		if got := ModelForSize(tt.provider, tt.size); got != tt.want {
			t.Errorf("ModelForSize(%s, %s) = %q, want %q", tt.provider, tt.size, got, tt.want)
		}
	}
}
