package plaintext

import (
	"errors"
	"testing"
)

func TestTextTrimsAndDropsBOM(t *testing.T) {
	got, err := Text([]byte("\xEF\xBB\xBF  Kündigung der Police\n"))
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if got != "Kündigung der Police" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestTextRejectsBinary(t *testing.T) {
	_, err := Text([]byte{0xff, 0xfe, 0x00, 0x41})
	if !errors.Is(err, ErrBinary) {
		t.Fatalf("expected ErrBinary, got %v", err)
	}
}
