package replicate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRunWithModelEndpoint(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/models/acme/sprites/predictions":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode body: %v", err)
			}
			if _, ok := body["version"]; ok {
				t.Errorf("model endpoint should not receive version")
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "p1", "status": StatusStarting})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/predictions/p1":
			if polls.Add(1) < 2 {
				_ = json.NewEncoder(w).Encode(map[string]any{"id": "p1", "status": StatusProcessing})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "p1", "status": StatusSucceeded, "output": []string{"https://out/0.png", "https://out/1.png"}})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIToken: "tok", BaseURL: server.URL}, WithPollInterval(time.Millisecond))
	pred, err := client.Run(context.Background(), "acme/sprites", "", map[string]any{"prompt": "knight"}, 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	urls, err := pred.OutputURLs()
	if err != nil {
		t.Fatalf("OutputURLs returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"https://out/0.png", "https://out/1.png"}, urls); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateWithVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/predictions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["version"] != "abc123" {
			t.Errorf("expected version in body, got %v", body["version"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "p2", "status": StatusSucceeded, "output": "https://out/only.png"})
	}))
	defer server.Close()

	client := NewClient(Config{APIToken: "tok", BaseURL: server.URL})
	pred, err := client.Run(context.Background(), "acme/sprites", "abc123", nil, 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	urls, _ := pred.OutputURLs()
	if len(urls) != 1 || urls[0] != "https://out/only.png" {
		t.Fatalf("unexpected urls %v", urls)
	}
}

func TestWaitFailedPrediction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "p3", "status": StatusStarting})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "p3", "status": StatusFailed, "error": "NSFW content detected"})
	}))
	defer server.Close()

	client := NewClient(Config{APIToken: "tok", BaseURL: server.URL}, WithPollInterval(time.Millisecond))
	_, err := client.Run(context.Background(), "acme/sprites", "", nil, 0)
	if err == nil || !strings.Contains(err.Error(), "NSFW content detected") || !strings.Contains(err.Error(), "failed") {
		t.Fatalf("expected failed prediction error, got %v", err)
	}
}

func TestCanceledPredictionIsError(t *testing.T) {
	pred := Prediction{ID: "p4", Status: StatusCanceled}
	client := NewClient(Config{APIToken: "tok"})
	if _, err := client.Wait(context.Background(), pred, 0); err == nil || !strings.Contains(err.Error(), "canceled") {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestCreateRequiresModelOrVersion(t *testing.T) {
	client := NewClient(Config{APIToken: "tok"})
	if _, err := client.Create(context.Background(), "", "", nil, 0); err == nil || !strings.Contains(err.Error(), "model required") {
		t.Fatalf("expected model required error, got %v", err)
	}
	if _, err := NewClient(Config{}).Create(context.Background(), "a/b", "", nil, 0); err == nil {
		t.Fatal("expected missing token error")
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"invalid input"}`))
	}))
	defer server.Close()
	client := NewClient(Config{APIToken: "tok", BaseURL: server.URL})
	_, err := client.Create(context.Background(), "a/b", "", nil, 0)
	if StatusCode(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%v)", StatusCode(err), err)
	}
}

func TestOutputURLsShapes(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{``, nil},
		{`null`, nil},
		{`"https://a"`, []string{"https://a"}},
		{`["https://a","","https://b"]`, []string{"https://a", "https://b"}},
	}
	for _, tc := range cases {
		got, err := Prediction{Output: json.RawMessage(tc.raw)}.OutputURLs()
		if err != nil {
			t.Fatalf("OutputURLs(%s) returned error: %v", tc.raw, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("OutputURLs(%s) mismatch (-want +got):\n%s", tc.raw, diff)
		}
	}
	if _, err := (Prediction{Output: json.RawMessage(`{"image":"x"}`)}).OutputURLs(); err == nil {
		t.Fatal("expected error for object output")
	}
}
