package persist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"polygon-annotator/pkg/geometry"
)

func TestSavePostsPayload(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != SavePath {
			t.Errorf("request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Annotation saved"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	msg, err := c.Save(context.Background(), Payload{
		ImageName:   "cells.png",
		Annotations: []geometry.Point2D{{X: 1, Y: 2}, {X: 3.5, Y: 4}},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if msg != "Annotation saved" {
		t.Errorf("message = %q", msg)
	}
	if got.ImageName != "cells.png" || len(got.Annotations) != 2 || got.Annotations[1].X != 3.5 {
		t.Errorf("server saw %+v", got)
	}
}

func TestSaveEmptyAnnotationsIsArray(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, 0).Save(context.Background(), Payload{ImageName: "a"}); err != nil {
		t.Fatal(err)
	}
	if string(raw["annotations"]) != "[]" {
		t.Errorf("annotations = %s, want []", raw["annotations"])
	}
}

func TestSaveServerError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json error", http.StatusBadRequest, `{"error":"image_name required"}`, "image_name required"},
		{"plain text", http.StatusInternalServerError, "boom\n", "boom"},
		{"empty", http.StatusBadGateway, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Save(context.Background(), Payload{ImageName: "x"})
			var se *ServerError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want ServerError", err)
			}
			if se.Status != tt.status || se.Message != tt.wantMsg {
				t.Errorf("got %d %q, want %d %q", se.Status, se.Message, tt.status, tt.wantMsg)
			}
		})
	}
}

func TestSaveTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewClient(url, time.Second).Save(context.Background(), Payload{}); err == nil {
		t.Fatal("expected transport error")
	}
	if _, err := NewClient("", time.Second).Save(context.Background(), Payload{}); !errors.Is(err, ErrNoBaseURL) {
		t.Errorf("err = %v, want ErrNoBaseURL", err)
	}
}

func TestSaveAsyncDeliversThroughCallback(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"message":"stored"}`))
	}))
	defer srv.Close()

	pts := []geometry.Point2D{{X: 1, Y: 1}}
	delivered := make(chan func(), 1)
	results := make(chan Result, 1)

	c := NewClient(srv.URL, time.Second)
	c.SaveAsync(context.Background(), Payload{ImageName: "a", Annotations: pts},
		func(f func()) { delivered <- f },
		func(r Result) { results <- r })

	// The caller keeps editing while the request is outstanding.
	pts[0].X = 99
	close(release)

	select {
	case f := <-delivered:
		select {
		case <-results:
			t.Fatal("done ran before deliver invoked it")
		default:
		}
		f()
	case <-time.After(5 * time.Second):
		t.Fatal("save never delivered")
	}
	r := <-results
	if r.Err != nil || r.Message != "stored" {
		t.Errorf("result = %+v", r)
	}
}
