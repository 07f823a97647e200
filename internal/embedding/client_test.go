package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46}

func TestClient_DetectFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("expected /embed/face, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart file field: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("expected image/jpeg part, got %s", ct)
		}
		data, _ := io.ReadAll(file)
		if len(data) != len(jpegHeader) {
			t.Errorf("expected %d bytes, got %d", len(jpegHeader), len(data))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(faceResponse{
			FacesCount: 2,
			Faces: []faceDetection{
				{FaceIndex: 0, Dim: 3, Embedding: []float32{1, 0, 0}, BBox: []float64{1, 2, 3, 4}, DetScore: 0.99},
				{FaceIndex: 1, Dim: 3, Embedding: []float32{0, 1, 0}, DetScore: 0.8},
			},
			Model: "buffalo_l",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "", time.Second)
	faces, err := client.DetectFaces(context.Background(), jpegHeader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(faces))
	}
	if faces[0].Index != 0 || faces[1].Index != 1 {
		t.Errorf("unexpected face indexes: %d, %d", faces[0].Index, faces[1].Index)
	}
	if faces[0].DetScore != 0.99 {
		t.Errorf("expected det score 0.99, got %v", faces[0].DetScore)
	}
	if len(faces[0].BBox) != 4 {
		t.Errorf("expected bbox, got %v", faces[0].BBox)
	}
}

func TestClient_DetectFaces_NoFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"faces_count": 0, "faces": [], "model": "buffalo_l"}`))
	}))
	defer server.Close()

	faces, err := NewClient(server.URL, "", time.Second).DetectFaces(context.Background(), jpegHeader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("expected no faces, got %d", len(faces))
	}
}

func TestClient_DetectFaces_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"server error", http.StatusInternalServerError, "model not loaded", "status 500"},
		{"bad json", http.StatusOK, "{not json", "failed to parse response"},
		{"empty embedding", http.StatusOK, `{"faces":[{"face_index":0,"embedding":[]}]}`, "empty embedding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "", time.Second).DetectFaces(context.Background(), jpegHeader)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestClient_DetectFaces_EmptyImage(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", "", time.Second).DetectFaces(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestClient_Ping(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "healthz", time.Second)
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("expected healthy server, got %v", err)
	}

	healthy.Store(false)
	if err := client.Ping(context.Background()); err == nil {
		t.Error("expected error for unhealthy server")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", jpegHeader, "image/jpeg"},
		{"png", []byte("\x89PNG\r\n\x1a\n"), "image/png"},
		{"gif", []byte("GIF89a\x00\x00"), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		{"bmp", []byte("BM\x00\x00\x00\x00\x00\x00"), "image/bmp"},
		{"too short", []byte{0xFF, 0xD8}, "application/octet-stream"},
		{"unknown", []byte("hello world"), "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("detectMIMEType() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestSingleFace(t *testing.T) {
	one := Face{Index: 0, Embedding: []float32{1}}

	if _, err := SingleFace(nil); !errors.Is(err, ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}
	if _, err := SingleFace([]Face{one, one}); !errors.Is(err, ErrMultipleFaces) {
		t.Errorf("expected ErrMultipleFaces, got %v", err)
	}
	got, err := SingleFace([]Face{one})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Index != 0 {
		t.Errorf("expected face 0, got %d", got.Index)
	}
}
