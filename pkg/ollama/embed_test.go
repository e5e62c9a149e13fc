package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if strings.Contains(req.Prompt, "fail") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		vec := make([]float64, dims)
		vec[0] = float64(len(req.Prompt))
		json.NewEncoder(w).Encode(embedResp{Embedding: vec})
	}))
}

func TestEmbed(t *testing.T) {
	srv := newServer(t, 4)
	defer srv.Close()

	c := NewEmbedClient(srv.URL+"/", "nomic-embed-text", 4)
	vec, err := c.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 4 || vec[0] != 3 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if c.Name() != "ollama/nomic-embed-text" || c.Dimension() != 4 {
		t.Fatalf("unexpected identity %s/%d", c.Name(), c.Dimension())
	}
}

func TestEmbed_StatusError(t *testing.T) {
	srv := newServer(t, 4)
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "m", 4)
	if _, err := c.Embed(context.Background(), "please fail"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	srv := newServer(t, 3)
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "m", 4)
	if _, err := c.Embed(context.Background(), "abc"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbedBatch_AllOrNothing(t *testing.T) {
	srv := newServer(t, 2)
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "m", 2, WithWorkers(2))
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 3 || vecs[2][0] != 3 {
		t.Fatalf("unexpected batch %v", vecs)
	}

	vecs, err = c.EmbedBatch(context.Background(), []string{"a", "fail", "c"})
	if err == nil {
		t.Fatal("expected batch error")
	}
	if vecs != nil {
		t.Fatalf("expected no partial results, got %v", vecs)
	}
}
