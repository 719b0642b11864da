package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Complete(context.Background(), CompletionRequest{
		Prompt: "Hi",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Text)
	}
}

func TestScriptedMockProvider(t *testing.T) {
	mock := NewScriptedMockProvider("test-model", "first", "second")

	resp, err := mock.Complete(context.Background(), CompletionRequest{Prompt: "a"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "first" {
		t.Errorf("expected 'first', got '%s'", resp.Text)
	}

	if next := mock.PeekNext(); next != "second" {
		t.Errorf("expected peek 'second', got '%s'", next)
	}

	resp, err = mock.Complete(context.Background(), CompletionRequest{Prompt: "b"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "second" {
		t.Errorf("expected 'second', got '%s'", resp.Text)
	}

	if _, err := mock.Complete(context.Background(), CompletionRequest{Prompt: "c"}); err == nil {
		t.Error("expected error when script is exhausted")
	}
	if mock.CallCount != 3 {
		t.Errorf("expected 3 calls, got %d", mock.CallCount)
	}
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		if req.Model != "test-model" {
			t.Errorf("unexpected model %s", req.Model)
		}
		if req.Prompt != "Calculate 15 * 23" {
			t.Errorf("unexpected prompt %q", req.Prompt)
		}
		if got := req.Options["num_predict"]; got != float64(50) {
			t.Errorf("expected num_predict 50, got %v", got)
		}
		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Response:        "345",
			Done:            true,
			EvalCount:       3,
			PromptEvalCount: 8,
		})
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, 5*time.Second)
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Model:     "test-model",
		Prompt:    "Calculate 15 * 23",
		MaxTokens: 50,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "345" {
		t.Errorf("expected '345', got '%s'", resp.Text)
	}
	if resp.Usage.TotalTokens != 11 {
		t.Errorf("expected total tokens 11, got %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, 5*time.Second)
	_, err := p.Complete(context.Background(), CompletionRequest{Model: "missing", Prompt: "x"})
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req openAICompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.MaxTokens != 20 {
			t.Errorf("expected max_tokens 20, got %d", req.MaxTokens)
		}
		w.Write([]byte(`{"choices":[{"text":"The answer is 42","finish_reason":"length"}],"usage":{"prompt_tokens":5,"completion_tokens":4,"total_tokens":9}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "sk-test", 5*time.Second)
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Model:     "gpt-test",
		Prompt:    "What is the answer?",
		MaxTokens: 20,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "The answer is 42" {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.Usage.CompletionTokens != 4 {
		t.Errorf("expected completion tokens 4, got %d", resp.Usage.CompletionTokens)
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "", 5*time.Second)
	if _, err := p.Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "p"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
