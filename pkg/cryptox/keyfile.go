package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrKeyMissing reports that the key file does not exist and the caller
// required an existing key. Operator diagnostic; the process should halt.
var ErrKeyMissing = errors.New("cryptox: key file missing")

// hkdfInfo binds derived keys to this purpose so the same file material
// can never silently key an unrelated cipher.
const hkdfInfo = "jjcims credential cipher v1"

// LoadOrCreateKey reads the key file at path, generating and persisting a
// fresh 256-bit key if the file is absent. The returned key is the
// derived AEAD key, not the raw file contents.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := LoadKey(path)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ErrKeyMissing) {
		return nil, err
	}

	material := make([]byte, KeySize)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("generate key material: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(material) + "\n"
	if err := atomicWriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return deriveKey(material)
}

// LoadKey reads the key file at path, failing with ErrKeyMissing if it
// does not exist.
func LoadKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyMissing
		}
		return nil, fmt.Errorf("read key file: %w", err)
	}

	material, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	if len(material) != KeySize {
		return nil, fmt.Errorf("key file holds %d bytes, want %d", len(material), KeySize)
	}
	return deriveKey(material)
}

// deriveKey expands file material into the AEAD key with HKDF-SHA256.
func deriveKey(material []byte) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it into place, so a crash never leaves a truncated key file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
