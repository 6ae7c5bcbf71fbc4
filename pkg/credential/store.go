package credential

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultStoreDir is the directory under the user's home holding the store.
const DefaultStoreDir = ".ipintel"

// storeVersion is the on-disk format version.
const storeVersion = 1

var (
	// ErrEmptyKey is returned by Save for blank keys.
	ErrEmptyKey = errors.New("api key must not be empty")

	// ErrNoPassphrase is returned when the store has no passphrase to derive a key from.
	ErrNoPassphrase = errors.New("credential store passphrase is not set")
)

// storeFile is the JSON layout of the dotfile.
type storeFile struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Ciphertext string `json:"ciphertext"`
}

// FileStore keeps the API key encrypted in a dotfile.
type FileStore struct {
	path       string
	passphrase string
}

// DefaultStorePath returns ~/.ipintel/credentials.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultStoreDir, "credentials"), nil
}

// NewFileStore returns a store at path sealed with passphrase.
func NewFileStore(path, passphrase string) *FileStore {
	return &FileStore{path: path, passphrase: passphrase}
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save encrypts key with a fresh salt and writes the file with mode 0600.
func (s *FileStore) Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	if s.passphrase == "" {
		return ErrNoPassphrase
	}

	salt, err := NewSalt()
	if err != nil {
		return err
	}
	sl, err := newSealer(DeriveKey(s.passphrase, salt))
	if err != nil {
		return err
	}
	sealed, err := sl.seal([]byte(key))
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}

	data, err := json.MarshalIndent(storeFile{
		Version:    storeVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credential store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace credential store: %w", err)
	}
	return nil
}

// APIKey implements Provider. A missing file yields an empty key.
func (s *FileStore) APIKey() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read credential store: %w", err)
	}
	if s.passphrase == "" {
		return "", ErrNoPassphrase
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("parse credential store: %w", err)
	}
	if f.Version != storeVersion {
		return "", fmt.Errorf("unsupported credential store version %d", f.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(f.Salt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(f.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	sl, err := newSealer(DeriveKey(s.passphrase, salt))
	if err != nil {
		return "", err
	}
	plaintext, err := sl.open(sealed)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Delete removes the store file. Deleting a missing file is not an error.
func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential store: %w", err)
	}
	return nil
}
