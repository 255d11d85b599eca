package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"

	"golang.org/x/term"
)

const ctrlC = 0x03

// enableQuitKey puts the terminal on stdin into raw mode and calls quit when
// q or Ctrl-C is pressed. It reports false when stdin is not a terminal.
func enableQuitKey(ctx context.Context, quit func()) (restore func(), ok bool) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, false
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		log.Printf("raw terminal unavailable, q will not quit: %v", err)
		return nil, false
	}

	go func() {
		if watchQuitKey(ctx, os.Stdin) {
			log.Printf("quit key pressed, shutting down")
			quit()
		}
	}()

	return func() {
		if err := term.Restore(fd, state); err != nil {
			log.Printf("restore terminal: %v", err)
		}
	}, true
}

// watchQuitKey reads r until a quit key arrives (true) or r fails or ctx is
// done (false).
func watchQuitKey(ctx context.Context, r io.Reader) bool {
	buf := make([]byte, 16)
	for ctx.Err() == nil {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if isQuitKey(b) {
				return true
			}
		}
		if err != nil {
			return false
		}
	}
	return false
}

func isQuitKey(b byte) bool {
	return b == 'q' || b == 'Q' || b == ctrlC
}

// crlfWriter translates "\n" to "\r\n" for output written while the terminal
// is in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
