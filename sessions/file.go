package sessions

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	fileExtension = ".json"
	sealedInfo    = "offers-dashboard session store"
	nonceSize     = 24
)

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// FileProvider keeps each namespace in its own JSON document under dir
type FileProvider struct {
	dir    string
	sealer *sealer

	mu     sync.Mutex
	stores map[string]*FileStore
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider creates dir if needed. A non-empty secret seals every document.
func NewFileProvider(dir, secret string) (*FileProvider, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("[sessions NewFileProvider] create %s: %w", dir, err)
	}
	p := &FileProvider{dir: dir, stores: make(map[string]*FileStore)}
	if secret != "" {
		s, err := newSealer(secret)
		if err != nil {
			return nil, fmt.Errorf("[sessions NewFileProvider] %w", err)
		}
		p.sealer = s
	}
	return p, nil
}

func (p *FileProvider) Open(namespace string) (Store, error) {
	if !namespacePattern.MatchString(namespace) {
		return nil, fmt.Errorf("invalid namespace %q", namespace)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.stores[namespace]; ok {
		return s, nil
	}
	s := &FileStore{path: p.path(namespace), sealer: p.sealer}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("[sessions Open] %s: %w", namespace, err)
	}
	p.stores[namespace] = s
	return s, nil
}

func (p *FileProvider) Remove(namespace string) error {
	if !namespacePattern.MatchString(namespace) {
		return fmt.Errorf("invalid namespace %q", namespace)
	}
	p.mu.Lock()
	delete(p.stores, namespace)
	p.mu.Unlock()

	if err := os.Remove(p.path(namespace)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("[sessions Remove] %w", err)
	}
	return nil
}

func (p *FileProvider) path(namespace string) string {
	return filepath.Join(p.dir, namespace+fileExtension)
}

// FileStore is a Store persisted to a single file, rewritten atomically on every change
type FileStore struct {
	path   string
	sealer *sealer

	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.flush()
}

func (s *FileStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flush()
}

func (s *FileStore) load() error {
	s.values = make(map[string]string)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.sealer != nil {
		if data, err = s.sealer.open(data); err != nil {
			// A document sealed under another secret is unreadable; start empty
			// so the session falls back to unauthenticated.
			log.Warn().Err(err).Str("path", s.path).Msg("Discarding unreadable session document")
			return nil
		}
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Discarding corrupt session document")
		s.values = make(map[string]string)
	}
	return nil
}

// flush must be called with s.mu held
func (s *FileStore) flush() error {
	if len(s.values) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}

	data, err := json.Marshal(s.values)
	if err != nil {
		return err
	}
	if s.sealer != nil {
		if data, err = s.sealer.seal(data); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

type sealer struct {
	key [32]byte
}

func newSealer(secret string) (*sealer, error) {
	s := &sealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealedInfo))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return s, nil
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *sealer) open(box []byte) ([]byte, error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, errors.New("sealed document too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("sealed document failed authentication")
	}
	return plain, nil
}
