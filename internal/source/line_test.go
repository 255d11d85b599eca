package source

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestLineSourceParsesCounts(t *testing.T) {
	s := NewLineSource("test", strings.NewReader("2\n\n# comment\n  9 \n5\n"))
	defer s.Close()

	ctx := context.Background()
	for i, want := range []int{2, 9, 5} {
		obs, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if obs.Count != want {
			t.Errorf("read %d: got %d, want %d", i, obs.Count, want)
		}
	}

	_, err := s.Next(ctx)
	if !errors.Is(err, ErrEndOfStream) {
		t.Errorf("after last line: got %v, want ErrEndOfStream", err)
	}

	// End of stream is sticky.
	_, err = s.Next(ctx)
	if !errors.Is(err, ErrEndOfStream) {
		t.Errorf("second read after end: got %v, want ErrEndOfStream", err)
	}
}

func TestLineSourceBadLine(t *testing.T) {
	s := NewLineSource("test", strings.NewReader("1\nabc\n3\n"))
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Next(ctx); err != nil {
		t.Fatalf("first read: unexpected error: %v", err)
	}

	_, err := s.Next(ctx)
	var acq *AcquisitionError
	if !errors.As(err, &acq) {
		t.Fatalf("expected *AcquisitionError, got %v", err)
	}
	if acq.Source != "test" {
		t.Errorf("Source: got %q, want %q", acq.Source, "test")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line: %v", err)
	}
}

func TestLineSourceReaderError(t *testing.T) {
	boom := errors.New("device gone")
	s := NewLineSource("test", io.MultiReader(strings.NewReader("4\n"), &errReader{err: boom}))
	defer s.Close()

	ctx := context.Background()
	obs, err := s.Next(ctx)
	if err != nil || obs.Count != 4 {
		t.Fatalf("first read: got (%d, %v), want (4, nil)", obs.Count, err)
	}

	_, err = s.Next(ctx)
	var acq *AcquisitionError
	if !errors.As(err, &acq) {
		t.Fatalf("expected *AcquisitionError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped reader error, got %v", err)
	}
}

func TestLineSourceCancelledContext(t *testing.T) {
	s := NewLineSource("test", strings.NewReader("1\n"))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestLineSourceCancelWhileBlocked(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewLineSource("pipe", pr)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}

	// The abandoned read completes with the next line; nothing is lost.
	go pw.Write([]byte("6\n"))
	obs, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Count != 6 {
		t.Errorf("got %d, want 6", obs.Count)
	}
	pw.Close()
}

func TestLineSourceNextAfterClose(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	s := NewLineSource("pipe", pr)

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Next(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrEndOfStream) {
			t.Errorf("got %v, want ErrEndOfStream", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next blocked after Close")
	}
}

type errReader struct {
	err error
}

func (r *errReader) Read([]byte) (int, error) {
	return 0, r.err
}
