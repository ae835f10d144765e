package commentary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"openf1companion/pkg/gaps"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Write([]byte(`{"text": "- Gap closing fast\n- DRS in play"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	text, err := c.Generate(context.Background(), PipelineBattle, "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Gap closing fast") {
		t.Errorf("unexpected text %q", text)
	}
}

func TestGenerateFailuresDegradeToFallback(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewClient(srv.URL)
		text, err := c.Generate(context.Background(), PipelineBattle, "prompt")
		if err == nil {
			t.Fatal("expected an error")
		}
		if got := OrFallback(text, err); got != Fallback {
			t.Errorf("OrFallback = %q, want the fixed fallback", got)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"text": "  "}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL)
		text, err := c.Generate(context.Background(), PipelineBattle, "prompt")
		if err == nil {
			t.Fatal("expected an error for empty text")
		}
		if got := OrFallback(text, err); got != Fallback {
			t.Errorf("OrFallback = %q, want the fixed fallback", got)
		}
	})
}

func TestBuildBattlePromptIncludesState(t *testing.T) {
	snaps := []gaps.Snapshot{{Index: 0, Gap: 1.4, ClosingRate: 0.2, DRSActive: false}}
	events := []gaps.Event{{Description: "Lap 12: move completed"}}
	prompt := BuildBattlePrompt("Alex Albon", 23, 12, snaps, events)

	for _, want := range []string{"Car 23", "lap 12", "1.4s", "Lap 12: move completed"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSplitBullets(t *testing.T) {
	text := "- First point\n\n* Second point\n• Third point \nplain line"
	bullets := SplitBullets(text)
	want := []string{"First point", "Second point", "Third point", "plain line"}
	if len(bullets) != len(want) {
		t.Fatalf("got %d bullets, want %d: %v", len(bullets), len(want), bullets)
	}
	for i := range want {
		if bullets[i] != want[i] {
			t.Errorf("bullets[%d] = %q, want %q", i, bullets[i], want[i])
		}
	}
}

func TestMergeBulletsDeduplicates(t *testing.T) {
	existing := []string{"Gap closing fast"}
	incoming := []string{"  gap CLOSING fast ", "Fresh tyres help"}
	merged := MergeBullets(existing, incoming, 10)
	if len(merged) != 2 {
		t.Fatalf("got %d bullets, want 2: %v", len(merged), merged)
	}
	if merged[1] != "Fresh tyres help" {
		t.Errorf("merged[1] = %q", merged[1])
	}
}

func TestMergeBulletsBounded(t *testing.T) {
	merged := MergeBullets([]string{"a", "b", "c"}, []string{"d", "e"}, 3)
	if len(merged) != 3 {
		t.Fatalf("got %d bullets, want 3", len(merged))
	}
	if merged[0] != "c" {
		t.Errorf("oldest bullets should be dropped first, got %v", merged)
	}
}
