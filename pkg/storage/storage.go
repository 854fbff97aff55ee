package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"arbiswap/pkg/types"
)

const (
	DefaultStorageFileName = ".arbiswap-state.json"

	// Keys under which the selected token pair is kept.
	KeyFromToken = "SWAP_FROM_TOKEN"
	KeyToToken   = "SWAP_TO_TOKEN"
)

// Storage is a small durable key-value store backed by one JSON file
type Storage struct {
	filePath string
	mu       sync.RWMutex
	values   map[string]json.RawMessage
}

// fileFormat represents the JSON structure for storage
type fileFormat struct {
	Values map[string]json.RawMessage `json:"values"`
}

// NewStorage creates a new storage instance
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get home directory")
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	s := &Storage{
		filePath: filePath,
		values:   make(map[string]json.RawMessage),
	}

	// A missing file is created on first save
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load state")
	}

	return s, nil
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return errors.Wrap(err, "failed to unmarshal state")
	}

	s.values = f.Values
	if s.values == nil {
		s.values = make(map[string]json.RawMessage)
	}
	return nil
}

// saveLocked writes all values to disk. The caller holds s.mu.
func (s *Storage) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Values: s.values}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write state")
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return errors.Wrap(err, "failed to rename temp file")
	}
	return nil
}

// Put stores v as JSON under key and flushes to disk
func (s *Storage) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = data
	return s.saveLocked()
}

// Get decodes the value under key into v. It reports false when key is absent.
func (s *Storage) Get(key string, v any) (bool, error) {
	s.mu.RLock()
	data, exists := s.values[key]
	s.mu.RUnlock()

	if !exists {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "failed to unmarshal %s", key)
	}
	return true, nil
}

// Delete removes key and flushes to disk
func (s *Storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.values[key]; !exists {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

// SaveTokenPair persists the selected input and output tokens
func (s *Storage) SaveTokenPair(in, out types.Token) error {
	inData, err := json.Marshal(in)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", KeyFromToken)
	}
	outData, err := json.Marshal(out)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", KeyToToken)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[KeyFromToken] = inData
	s.values[KeyToToken] = outData
	return s.saveLocked()
}

// LoadTokenPair returns the persisted pair. ok is false unless both keys are present.
func (s *Storage) LoadTokenPair() (in, out types.Token, ok bool, err error) {
	inOK, err := s.Get(KeyFromToken, &in)
	if err != nil {
		return types.Token{}, types.Token{}, false, err
	}
	outOK, err := s.Get(KeyToToken, &out)
	if err != nil {
		return types.Token{}, types.Token{}, false, err
	}
	return in, out, inOK && outOK, nil
}

// GetFilePath returns the storage file path
func (s *Storage) GetFilePath() string {
	return s.filePath
}
