package scan

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kinotekahq/kinoteka/pkg/items"
	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/kinotekahq/kinoteka/pkg/refresh"
	"github.com/pkg/errors"
)

// eventLog records the interleaving of store mutations and refresh enqueues
// so tests can assert on ordering across components.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.events...)
}

// memStore is an in-memory Store with the same case-insensitive path
// semantics as the real catalog.
type memStore struct {
	mu     sync.Mutex
	nextID int
	byPath map[string]*models.Item
	byID   map[int]*models.Item

	libraries []*models.Library
	log       *eventLog

	findErr error
	listErr error
}

func newMemStore(log *eventLog) *memStore {
	return &memStore{
		byPath: map[string]*models.Item{},
		byID:   map[int]*models.Item{},
		log:    log,
	}
}

func (s *memStore) seed(kind, path string, parent *models.Item) *models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := &models.Item{Kind: kind, Path: path, Name: filepath.Base(path)}
	if parent != nil {
		item.ParentID = &parent.ID
	}
	s.insertLocked(item)
	return item
}

func (s *memStore) insertLocked(item *models.Item) {
	s.nextID++
	item.ID = s.nextID
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	s.byPath[strings.ToLower(item.Path)] = item
	s.byID[item.ID] = item
}

func (s *memStore) FindByPath(_ context.Context, path string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.byPath[strings.ToLower(path)], nil
}

func (s *memStore) ParentOf(_ context.Context, item *models.Item) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ParentID == nil {
		return nil, nil
	}
	return s.byID[*item.ParentID], nil
}

func (s *memStore) CreateItem(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byPath[strings.ToLower(item.Path)]; ok {
		return errors.New("UNIQUE constraint failed: items.path")
	}
	s.insertLocked(item)
	s.log.add("create:" + item.Path)
	return nil
}

func (s *memStore) DeleteItem(_ context.Context, item *models.Item, opts items.DeleteItemOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.RemoveFromDisk {
		return errors.New("scan must never remove files from disk")
	}

	prefix := strings.ToLower(item.Path) + string(filepath.Separator)
	for path, descendant := range s.byPath {
		if strings.HasPrefix(path, prefix) {
			delete(s.byPath, path)
			delete(s.byID, descendant.ID)
		}
	}
	delete(s.byPath, strings.ToLower(item.Path))
	delete(s.byID, item.ID)
	s.log.add("delete:" + item.Path)
	return nil
}

func (s *memStore) ListDescendants(_ context.Context, path string) ([]*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	prefix := strings.ToLower(path) + string(filepath.Separator)
	descendants := []*models.Item{}
	for p, item := range s.byPath {
		if strings.HasPrefix(p, prefix) {
			descendants = append(descendants, item)
		}
	}
	return descendants, nil
}

func (s *memStore) ResolveType(path string, isDir bool, parent *models.Item, classification string) *items.ResolvedType {
	base := filepath.Base(path)

	if isDir {
		kind := models.KindFolder
		if classification == models.ClassificationTVShows && parent != nil {
			switch parent.Kind {
			case models.KindCollectionFolder, models.KindUserRoot, models.KindAggregateRoot, models.KindFolder:
				kind = models.KindSeries
			case models.KindSeries:
				kind = models.KindSeason
			}
		}
		return &items.ResolvedType{Kind: kind, Name: base}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mkv" && ext != ".mp4" {
		return nil
	}

	name := strings.TrimSuffix(base, ext)
	kind := models.KindVideo
	switch classification {
	case models.ClassificationMovies:
		kind = models.KindMovie
	case models.ClassificationTVShows:
		if parent != nil && (parent.Kind == models.KindSeason || parent.Kind == models.KindSeries) {
			kind = models.KindEpisode
		}
	}
	return &items.ResolvedType{Kind: kind, Name: name}
}

func (s *memStore) LibraryForPath(_ context.Context, path string) (*models.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lowered := strings.ToLower(path)
	for _, library := range s.libraries {
		for _, lp := range library.LibraryPaths {
			prefix := strings.ToLower(lp.Filepath)
			if lowered == prefix || strings.HasPrefix(lowered, prefix+string(filepath.Separator)) {
				return library, nil
			}
		}
	}
	return nil, nil
}

func (s *memStore) addLibrary(classification string, paths ...string) *models.Library {
	s.mu.Lock()
	defer s.mu.Unlock()

	library := &models.Library{ID: len(s.libraries) + 1, Classification: classification}
	for _, p := range paths {
		library.LibraryPaths = append(library.LibraryPaths, &models.LibraryPath{Filepath: p})
	}
	s.libraries = append(s.libraries, library)
	return library
}

// memProbe is an in-memory filesystem: a set of files and directories.
type memProbe struct {
	mu    sync.Mutex
	dirs  map[string]bool
	files map[string]bool
}

func newMemProbe() *memProbe {
	return &memProbe{dirs: map[string]bool{}, files: map[string]bool{}}
}

func (p *memProbe) addDir(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		p.dirs[strings.ToLower(path)] = true
		parent := filepath.Dir(path)
		if parent == path {
			return
		}
		path = parent
	}
}

func (p *memProbe) addFile(path string) {
	p.addDir(filepath.Dir(path))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[strings.ToLower(path)] = true
}

func (p *memProbe) remove(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, strings.ToLower(path))
	delete(p.dirs, strings.ToLower(path))
}

func (p *memProbe) Exists(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.ToLower(path)
	return p.files[key] || p.dirs[key]
}

func (p *memProbe) Stat(path string) (fs.FileInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.ToLower(path)
	if p.dirs[key] {
		return fakeFileInfo{name: filepath.Base(path), dir: true}, nil
	}
	if p.files[key] {
		return fakeFileInfo{name: filepath.Base(path)}, nil
	}
	return nil, os.ErrNotExist
}

type fakeFileInfo struct {
	name string
	dir  bool
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return 0 }
func (f fakeFileInfo) Mode() fs.FileMode  { return 0o644 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return f.dir }
func (f fakeFileInfo) Sys() interface{}   { return nil }

type enqueued struct {
	ItemID int
	Opts   refresh.EnqueueOptions
}

// memQueue records refresh enqueues in order.
type memQueue struct {
	mu   sync.Mutex
	jobs []enqueued
	log  *eventLog
}

func newMemQueue(log *eventLog) *memQueue {
	return &memQueue{log: log}
}

func (q *memQueue) Enqueue(_ context.Context, itemID int, opts refresh.EnqueueOptions) (*models.RefreshJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.jobs = append(q.jobs, enqueued{ItemID: itemID, Opts: opts})
	q.log.add("enqueue:" + strconv.Itoa(itemID))
	return &models.RefreshJob{ID: len(q.jobs), ItemID: itemID}, nil
}

func (q *memQueue) all() []enqueued {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]enqueued{}, q.jobs...)
}

// newTestService wires a Service against fresh fakes.
func newTestService(opts Options) (*Service, *memStore, *memProbe, *memQueue, *eventLog) {
	log := &eventLog{}
	store := newMemStore(log)
	probe := newMemProbe()
	queue := newMemQueue(log)
	return NewService(store, probe, queue, opts), store, probe, queue, log
}
