package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rapport-agent/src/normalize"
)

var png = []byte("\x89PNG\r\n\x1a\n0000")

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		doc  Document
		want string
	}{
		{Document{ContentType: "Image/PNG; charset=binary"}, "image/png"},
		{Document{Name: "chat.TXT"}, "text/plain"},
		{Document{Name: "scan.pdf"}, "application/pdf"},
		{Document{Data: png}, "image/png"},
		{Document{Data: []byte("hello")}, "text/plain"},
	}
	for _, tt := range tests {
		if got := DetectContentType(tt.doc); got != tt.want {
			t.Errorf("DetectContentType(%+v) = %q, expected %q", tt.doc.Name, got, tt.want)
		}
	}
}

func TestPassthrough(t *testing.T) {
	text, err := Passthrough{}.Extract(context.Background(), Document{Name: "a.txt", Data: []byte("Alice: hi")})
	if err != nil || text != "Alice: hi" {
		t.Fatalf("Extract() = %q, %v", text, err)
	}

	_, err = Passthrough{}.Extract(context.Background(), Document{Name: "a.txt", Data: []byte("  \n")})
	if !errors.Is(err, ErrNoText) {
		t.Errorf("blank text error = %v, expected ErrNoText", err)
	}

	_, err = Passthrough{}.Extract(context.Background(), Document{Name: "shot.png", Data: png})
	if !errors.Is(err, ErrNotAvailable) {
		t.Errorf("image error = %v, expected ErrNotAvailable", err)
	}

	_, err = Passthrough{}.Extract(context.Background(), Document{Name: "song.mp3", ContentType: "audio/mpeg"})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("audio error = %v, expected ErrUnsupported", err)
	}
	var extErr *ExtractionError
	if !errors.As(err, &extErr) || extErr.Document != "song.mp3" {
		t.Errorf("error %v should be an ExtractionError for song.mp3", err)
	}
}

func TestClientExtract(t *testing.T) {
	var gotType, gotName string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotName = r.Header.Get("X-Filename")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"Alice: hi\nBob: hey"}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, nil)
	text, err := c.Extract(context.Background(), Document{Name: "/tmp/shot.png", Data: png})
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if text != "Alice: hi\nBob: hey" {
		t.Errorf("text = %q", text)
	}
	if gotType != "image/png" || gotName != "shot.png" || string(gotBody) != string(png) {
		t.Errorf("request = %q %q %q", gotType, gotName, gotBody)
	}
}

func TestClientErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusUnsupportedMediaType, "", ErrUnsupported},
		{http.StatusUnprocessableEntity, "", ErrNoText},
		{http.StatusBadGateway, "upstream down", ErrUnavailable},
		{http.StatusOK, `{"text":"   "}`, ErrNoText},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewClient(server.URL, time.Second, nil).Extract(context.Background(), Document{Name: "x.pdf", Data: []byte("%PDF")})
			if !errors.Is(err, tt.want) {
				t.Errorf("Extract() error = %v, expected %v", err, tt.want)
			}
		})
	}
}

func TestClientSkipsRoundTripForText(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, nil)
	text, err := c.Extract(context.Background(), Document{Name: "chat.txt", Data: []byte("A: hi")})
	if err != nil || text != "A: hi" {
		t.Errorf("Extract() = %q, %v", text, err)
	}
}

func TestClientUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, nil)
	_, err := c.Extract(context.Background(), Document{Name: "x.png", Data: png})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Extract() error = %v, expected ErrUnavailable", err)
	}
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		hint    string
	}{
		{"no text", &ExtractionError{Err: ErrNoText}, "No readable text was found in the uploaded file", "paste the text"},
		{"unsupported", fmt.Errorf("upload: %w", &ExtractionError{Err: ErrUnsupported}), "This file type can't be read", "PDF"},
		{"unavailable", ErrNotAvailable, "Text extraction is not available right now", "Try again later"},
		{"other extraction", &ExtractionError{Err: errors.New("status 418")}, "Text extraction failed", "paste"},
		{"input", &normalize.InputError{Kind: normalize.ErrEmptyInput, Message: "The conversation is empty", Hint: "Paste a chat"}, "The conversation is empty", "Paste a chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapError(tt.err)
			userErr, ok := wrapped.(*UserError)
			if !ok {
				t.Fatalf("WrapError() returned %T, want *UserError", wrapped)
			}
			if userErr.Message != tt.message {
				t.Errorf("Message = %q, want %q", userErr.Message, tt.message)
			}
			if !strings.Contains(userErr.Hint, tt.hint) {
				t.Errorf("Hint should contain %q, got %q", tt.hint, userErr.Hint)
			}
			if !errors.Is(wrapped, tt.err) {
				t.Error("wrapped error should still match the original")
			}
			if UserMessage(tt.err) != tt.message {
				t.Errorf("UserMessage() = %q", UserMessage(tt.err))
			}
		})
	}
}

func TestWrapErrorPassesThrough(t *testing.T) {
	if WrapError(nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}
	err := errors.New("disk full")
	if WrapError(err) != err {
		t.Error("unrelated errors should be returned unchanged")
	}
	if UserMessage(err) != "" {
		t.Error("unrelated errors have no user message")
	}
}

func TestUserErrorFormatting(t *testing.T) {
	err := &UserError{Message: "Upload failed", Hint: "Retry", Err: errors.New("boom")}
	want := "Upload failed\n\nHint: Retry\n\nDetails: boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
