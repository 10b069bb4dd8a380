package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"k8s.io/utils/keymutex"

	"github.com/slopify/slopify/packages/cli/config"
	"github.com/slopify/slopify/packages/cli/internal/media/layout"
)

var (
	ErrNotAuthenticated = errors.New("Not authenticated")
	ErrNotFound         = errors.New("Project not found")
)

// Project is a named overlay arrangement owned by one user.
type Project struct {
	ID         string    `toml:"id" json:"id"`
	Name       string    `toml:"name" json:"name"`
	OverlayIDs []string  `toml:"overlay_ids" json:"overlay_ids"`
	Positions  []int     `toml:"positions" json:"positions"`
	CreatedAt  time.Time `toml:"created_at" json:"created_at"`
	UserID     string    `toml:"user_id" json:"user_id"`
}

// Assignment rebuilds the grid assignment stored in p.
func (p *Project) Assignment() (*layout.GridAssignment, error) {
	return layout.FromProject(p.OverlayIDs, p.Positions)
}

type storeFile struct {
	Projects []Project `toml:"projects"`
}

// Store persists projects in a TOML file.
type Store struct {
	path string
	now  func() time.Time

	// userLock serializes read-modify-write per user; fileMu guards the file itself.
	userLock keymutex.KeyMutex
	fileMu   sync.Mutex
}

// NewStore creates a store backed by path.
func NewStore(path string) *Store {
	return &Store{
		path:     path,
		now:      time.Now,
		userLock: keymutex.NewHashed(0),
	}
}

// NewDefaultStore creates a store at the configured project path.
func NewDefaultStore() *Store {
	return NewStore(config.GetProjectPath())
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() (storeFile, error) {
	var f storeFile
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("failed to read project file: %v", err)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := toml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("failed to parse project file: %v", err)
	}
	return f, nil
}

func (s *Store) save(f storeFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %v", err)
	}
	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to serialize project data: %v", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write project file: %v", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write project file: %v", err)
	}
	return nil
}

// mutate runs fn on the loaded file under the user's lock and writes the result.
func (s *Store) mutate(user string, fn func(*storeFile) error) error {
	s.userLock.LockKey(user)
	defer s.userLock.UnlockKey(user)

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&f); err != nil {
		return err
	}
	return s.save(f)
}

func validateArrangement(ids []string, positions []int) error {
	if len(ids) != len(positions) {
		return fmt.Errorf("overlay ids and positions differ in length: %d != %d", len(ids), len(positions))
	}
	for _, p := range positions {
		if !layout.Position(p).IsOverlay() {
			return fmt.Errorf("position %d out of range 0..%d", p, layout.TotalOverlayPositions-1)
		}
	}
	return nil
}

// Save stores a new project for user and returns it.
func (s *Store) Save(user, name string, ids []string, positions []int) (*Project, error) {
	if user == "" {
		return nil, ErrNotAuthenticated
	}
	if err := validateArrangement(ids, positions); err != nil {
		return nil, err
	}

	p := Project{
		ID:         uuid.New().String(),
		Name:       name,
		OverlayIDs: append([]string{}, ids...),
		Positions:  append([]int{}, positions...),
		CreatedAt:  s.now().UTC(),
		UserID:     user,
	}
	err := s.mutate(user, func(f *storeFile) error {
		f.Projects = append(f.Projects, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns user's projects, newest first. An empty user has no projects.
func (s *Store) List(user string) ([]Project, error) {
	if user == "" {
		return nil, nil
	}
	s.fileMu.Lock()
	f, err := s.load()
	s.fileMu.Unlock()
	if err != nil {
		return nil, err
	}

	// Walk backwards so projects saved in the same instant keep save order reversed.
	var out []Project
	for i := len(f.Projects) - 1; i >= 0; i-- {
		if f.Projects[i].UserID == user {
			out = append(out, f.Projects[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns the project with id if user owns it, nil otherwise.
func (s *Store) Get(user, id string) (*Project, error) {
	if user == "" {
		return nil, nil
	}
	s.fileMu.Lock()
	f, err := s.load()
	s.fileMu.Unlock()
	if err != nil {
		return nil, err
	}
	for i := range f.Projects {
		if f.Projects[i].ID == id && f.Projects[i].UserID == user {
			p := f.Projects[i]
			return &p, nil
		}
	}
	return nil, nil
}

// Update replaces the name and arrangement of a project user owns.
func (s *Store) Update(user, id, name string, ids []string, positions []int) error {
	if user == "" {
		return ErrNotAuthenticated
	}
	if err := validateArrangement(ids, positions); err != nil {
		return err
	}
	return s.mutate(user, func(f *storeFile) error {
		i := f.index(user, id)
		if i < 0 {
			return ErrNotFound
		}
		f.Projects[i].Name = name
		f.Projects[i].OverlayIDs = append([]string{}, ids...)
		f.Projects[i].Positions = append([]int{}, positions...)
		return nil
	})
}

// Delete removes a project user owns.
func (s *Store) Delete(user, id string) error {
	if user == "" {
		return ErrNotAuthenticated
	}
	return s.mutate(user, func(f *storeFile) error {
		i := f.index(user, id)
		if i < 0 {
			return ErrNotFound
		}
		f.Projects = append(f.Projects[:i], f.Projects[i+1:]...)
		return nil
	})
}

func (f *storeFile) index(user, id string) int {
	for i, p := range f.Projects {
		if p.ID == id && p.UserID == user {
			return i
		}
	}
	return -1
}
