package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"trackerlens/session"
)

// FileStore 以单个 JSON 文件保存全部状态
// 内存中保留一份完整快照，每次 Save 合并批次后整体重写文件。
type FileStore struct {
	path string

	mu     sync.Mutex
	state  *Snapshot
	loaded bool
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load 从磁盘读取状态，文件不存在时返回空快照
func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return cloneSnapshot(s.state), nil
}

func (s *FileStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.state = emptySnapshot()
			s.loaded = true
			return nil
		}
		return err
	}

	state := emptySnapshot()
	if err := json.Unmarshal(data, state); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	if state.Sessions == nil {
		state.Sessions = make(map[string]session.State)
	}
	s.state = state
	s.loaded = true
	return nil
}

// Save 合并批次并原子写入：先写临时文件，再重命名
func (s *FileStore) Save(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Reset {
		s.state = emptySnapshot()
		s.loaded = true
	} else if err := s.ensureLoaded(); err != nil {
		return err
	}

	apply(s.state, b)

	data, err := json.Marshal(s.state)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempFile, s.path)
}

func (s *FileStore) Close() error {
	return nil
}

// apply 将批次合并到快照
func apply(state *Snapshot, b Batch) {
	for _, id := range b.Removed {
		delete(state.Sessions, id)
	}
	for id, st := range b.Sessions {
		state.Sessions[id] = st
	}
	state.Globals = b.Globals
}

func cloneSnapshot(src *Snapshot) *Snapshot {
	dst := &Snapshot{
		Sessions: make(map[string]session.State, len(src.Sessions)),
		Globals:  src.Globals,
	}
	for id, st := range src.Sessions {
		st.Events = append([]session.Event(nil), st.Events...)
		dst.Sessions[id] = st
	}
	if src.Globals.Enabled != nil {
		enabled := *src.Globals.Enabled
		dst.Globals.Enabled = &enabled
	}
	return dst
}
