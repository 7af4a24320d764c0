package storage

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	plain := []byte("page_001_label.png contents with a recipient address")

	enc, err := encrypt(plain, "super-secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(enc, plain) {
		t.Fatal("ciphertext contains plaintext")
	}
	if string(enc[:len(encMagic)]) != encMagic {
		t.Fatalf("missing format marker, got %q", enc[:len(encMagic)])
	}

	dec, err := Decrypt(enc, "super-secret")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Errorf("roundtrip mismatch: %q", dec)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	enc, err := encrypt([]byte("label"), "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(enc, "wrong"); err == nil {
		t.Fatal("expected authentication failure")
	}
}

func TestDecryptNotEncrypted(t *testing.T) {
	if _, err := Decrypt([]byte("plain png bytes"), "x"); err == nil {
		t.Fatal("expected format error for plaintext input")
	}
}

func TestDecryptTruncated(t *testing.T) {
	enc, err := encrypt([]byte("label"), "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(enc[:len(encMagic)+saltLen+4], "pass"); err == nil {
		t.Fatal("expected error for truncated object")
	}
}

func TestEncryptSaltsDiffer(t *testing.T) {
	a, err := encrypt([]byte("same input"), "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := encrypt([]byte("same input"), "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same input must not be identical")
	}
}
