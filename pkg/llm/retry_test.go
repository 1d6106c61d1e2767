// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	credenceerrors "github.com/tombee/credence/pkg/errors"
)

type mockRetryProvider struct {
	failCount      int
	currentAttempt int
	failWith       error
}

func (m *mockRetryProvider) Name() string { return "test" }

func (m *mockRetryProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.currentAttempt++
	if m.currentAttempt <= m.failCount {
		return nil, m.failWith
	}
	return &CompletionResponse{Content: "success"}, nil
}

func fastRetryConfig(maxRetries int) RetryConfig {
	config := DefaultRetryConfig(maxRetries)
	config.InitialDelay = time.Millisecond
	config.MaxDelay = 5 * time.Millisecond
	return config
}

func TestRetryProvider_SuccessFirstAttempt(t *testing.T) {
	mock := &mockRetryProvider{}
	retry := NewRetryProvider(mock, fastRetryConfig(3))

	resp, err := retry.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Content != "success" {
		t.Errorf("expected 'success', got %q", resp.Content)
	}
	if mock.currentAttempt != 1 {
		t.Errorf("expected 1 attempt, got %d", mock.currentAttempt)
	}
	if retry.Name() != "test" {
		t.Errorf("expected wrapped name, got %q", retry.Name())
	}
}

func TestRetryProvider_RetriesTransientErrors(t *testing.T) {
	mock := &mockRetryProvider{
		failCount: 2,
		failWith:  &credenceerrors.ProviderError{Provider: "test", StatusCode: http.StatusTooManyRequests},
	}
	retry := NewRetryProvider(mock, fastRetryConfig(3))

	if _, err := retry.Complete(context.Background(), CompletionRequest{}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if mock.currentAttempt != 3 {
		t.Errorf("expected 3 attempts, got %d", mock.currentAttempt)
	}
}

func TestRetryProvider_DoesNotRetryPermanentErrors(t *testing.T) {
	mock := &mockRetryProvider{
		failCount: 5,
		failWith:  &credenceerrors.ProviderError{Provider: "test", StatusCode: http.StatusUnauthorized},
	}
	retry := NewRetryProvider(mock, fastRetryConfig(3))

	_, err := retry.Complete(context.Background(), CompletionRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if mock.currentAttempt != 1 {
		t.Errorf("expected 1 attempt, got %d", mock.currentAttempt)
	}
	if errors.Is(err, ErrMaxRetriesExceeded) {
		t.Error("permanent errors should be returned as-is")
	}
}

func TestRetryProvider_MaxRetriesExceeded(t *testing.T) {
	cause := &credenceerrors.ProviderError{Provider: "test", StatusCode: http.StatusBadGateway}
	mock := &mockRetryProvider{failCount: 10, failWith: cause}
	retry := NewRetryProvider(mock, fastRetryConfig(2))

	_, err := retry.Complete(context.Background(), CompletionRequest{})
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Fatalf("expected ErrMaxRetriesExceeded, got %v", err)
	}
	var provErr *credenceerrors.ProviderError
	if !errors.As(err, &provErr) {
		t.Error("expected the last provider error to stay reachable")
	}
	if mock.currentAttempt != 3 {
		t.Errorf("expected 3 attempts, got %d", mock.currentAttempt)
	}
}

func TestRetryProvider_ZeroRetriesPassesThrough(t *testing.T) {
	cause := &credenceerrors.ProviderError{Provider: "test", StatusCode: http.StatusServiceUnavailable}
	mock := &mockRetryProvider{failCount: 1, failWith: cause}
	retry := NewRetryProvider(mock, DefaultRetryConfig(0))

	_, err := retry.Complete(context.Background(), CompletionRequest{})
	if err != cause {
		t.Fatalf("expected the original error, got %v", err)
	}
	if mock.currentAttempt != 1 {
		t.Errorf("expected 1 attempt, got %d", mock.currentAttempt)
	}
}

func TestRetryProvider_ContextCancelled(t *testing.T) {
	mock := &mockRetryProvider{
		failCount: 10,
		failWith:  &credenceerrors.ProviderError{Provider: "test", StatusCode: http.StatusInternalServerError},
	}
	config := DefaultRetryConfig(5)
	config.InitialDelay = time.Second
	retry := NewRetryProvider(mock, config)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := retry.Complete(ctx, CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if mock.currentAttempt != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", mock.currentAttempt)
	}
}

func TestRetryProvider_Backoff(t *testing.T) {
	config := DefaultRetryConfig(5)
	config.Jitter = 0
	retry := NewRetryProvider(&mockRetryProvider{}, config)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := retry.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
