package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	ErrNoSnapshot      = errors.New("снимок состояния отсутствует")
	ErrCorruptSnapshot = errors.New("снимок состояния повреждён")
)

type Store interface {
	Load() (State, error)
	Save(State) error
}

// FileStore хранит снимок в одном JSON-файле; запись через временный файл и rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, ErrNoSnapshot
		}
		return State{}, fmt.Errorf("Не удалось прочитать снимок %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return State{}, ErrNoSnapshot
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return st.Clone(), nil
}

func (s *FileStore) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("Не удалось создать каталог %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("Не удалось сериализовать состояние: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("Не удалось создать временный файл: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("Не удалось записать состояние: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("Не удалось записать состояние: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("Не удалось записать состояние: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("Не удалось заменить снимок %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore - хранилище без диска для paper-прогонов и тестов.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
	saves int
}

func (m *MemoryStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return State{}, ErrNoSnapshot
	}
	return m.state.Clone(), nil
}

func (m *MemoryStore) Save(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := st.Clone()
	m.state = &c
	m.saves++
	return nil
}

func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
