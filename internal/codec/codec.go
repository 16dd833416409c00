// Package codec implements the encrypted line-oriented text file format
// that backs every entity class in the mapping registry. It owns the
// escaping convention shared by every higher layer: newline and the Data
// record separator are replaced by sentinel tokens so they never collide
// with the delimiter hierarchy a higher layer imposes on the text.
package codec

import (
	"crypto/rand"
	"encoding/base64"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"ixode.dev/core/internal/apperr"
)

// NewlineSentinel and SeparatorSentinel are the two escape tokens every
// higher layer relies on before it applies its own delimiter splitting.
const (
	NewlineSentinel   = "_newline_"
	SeparatorSentinel = "---"
	RecordSeparator   = "----------"
)

// EscapeNewline replaces literal newlines with their sentinel. Every field
// that can contain free text (DataPair.value, template strings, …) is
// escaped this way before it is written into a delimited record.
func EscapeNewline(s string) string {
	return strings.ReplaceAll(s, "\n", NewlineSentinel)
}

// UnescapeNewline reverses EscapeNewline.
func UnescapeNewline(s string) string {
	return strings.ReplaceAll(s, NewlineSentinel, "\n")
}

// EscapeRecordSeparator replaces a literal occurrence of the Data record
// separator with its sentinel so it cannot be mistaken for a true record
// boundary.
func EscapeRecordSeparator(s string) string {
	return strings.ReplaceAll(s, RecordSeparator, SeparatorSentinel)
}

// UnescapeRecordSeparator reverses EscapeRecordSeparator.
func UnescapeRecordSeparator(s string) string {
	return strings.ReplaceAll(s, SeparatorSentinel, RecordSeparator)
}

// Fetch reads the file at path. A missing file yields empty text, not an
// error. When key is non-empty the file body is decrypted with it.
func Fetch(path string, key string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", apperr.Wrap(apperr.Internal, err, "Error: failed reading "+path)
	}

	if key == "" {
		return string(raw), nil
	}

	plain, err := decrypt(raw, key)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "Error: failed decrypting "+path)
	}
	return plain, nil
}

// Save writes text to path as a full rewrite. The write goes to a sibling
// temp file and is renamed into place so a crash mid-write cannot corrupt
// the previous file's existence. When key is non-empty the body is
// encrypted before it touches disk.
func Save(path string, text string, key string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(apperr.Internal, err, "Error: failed creating directory for "+path)
	}

	body := []byte(text)
	if key != "" {
		enc, err := encrypt(body, key)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "Error: failed encrypting "+path)
		}
		body = enc
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return apperr.Wrap(apperr.Internal, err, "Error: failed writing "+path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperr.Wrap(apperr.Internal, err, "Error: failed committing "+path)
	}
	return nil
}

// Exists reports whether path names a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// RemoveDir removes a directory and everything under it, used by the
// Collection lifecycle (§3: a directory exists while the collection does).
func RemoveDir(path string) error {
	if err := os.RemoveAll(path); err != nil && !errorsIsNotExist(err) {
		return apperr.Wrap(apperr.Internal, err, "Error: failed removing directory "+path)
	}
	return nil
}

// MakeDir creates a directory (and parents) for a newly created Collection.
func MakeDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return apperr.Wrap(apperr.Internal, err, "Error: failed creating directory "+path)
	}
	return nil
}

func errorsIsNotExist(err error) bool {
	return os.IsNotExist(err) || err == fs.ErrNotExist
}

func key32(key string) []byte {
	sum := make([]byte, chacha20poly1305.KeySize)
	copy(sum, []byte(key))
	// Stretch/truncate short keys deterministically; callers are expected
	// to supply a sufficiently random IXODE_ENCRYPTION_KEY.
	if len(key) < chacha20poly1305.KeySize {
		digest := base64.StdEncoding.EncodeToString([]byte(key))
		copy(sum, digest)
	}
	return sum
}

func encrypt(plain []byte, key string) ([]byte, error) {
	aead, err := chacha20poly1305.New(key32(key))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func decrypt(cipher []byte, key string) (string, error) {
	aead, err := chacha20poly1305.New(key32(key))
	if err != nil {
		return "", err
	}
	if len(cipher) < chacha20poly1305.NonceSize {
		return "", apperr.BadInputf("Error: ciphertext too short")
	}
	nonce, body := cipher[:chacha20poly1305.NonceSize], cipher[chacha20poly1305.NonceSize:]
	plain, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
