package tasks

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ID identifies a task.
type ID int

// Status is the completion state of a task.
type Status int

const (
	StatusPending Status = iota
	StatusCompleted
)

func (s Status) String() string {
	if s == StatusCompleted {
		return "done"
	}
	return "pending"
}

// Tag categorizes a task.
type Tag string

const (
	TagPersonal Tag = "personal"
	TagWork     Tag = "work"
	TagUrgent   Tag = "urgent"
	TagLater    Tag = "later"
)

// Task is one entry of the list.
type Task struct {
	ID          ID
	Title       string
	Description string
	Tag         Tag
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Stats summarizes the store.
type Stats struct {
	Total     int
	Completed int
	Pending   int
}

// Store holds tasks.
type Store interface {
	Add(title, description string, tag Tag) ID
	Get(id ID) (Task, bool)
	Rename(id ID, title string) bool
	Toggle(id ID) bool
	Delete(id ID) bool
	// List returns every task, oldest first.
	List() []Task
	Stats() Stats
}

type memoryStore struct {
	mu     sync.RWMutex
	tasks  map[ID]*Task
	nextID ID
	now    func() time.Time
	logger *zap.Logger
}

func newMemoryStore(logger *zap.Logger) Store {
	return &memoryStore{
		tasks:  make(map[ID]*Task),
		nextID: 1,
		now:    time.Now,
		logger: logger,
	}
}

func (s *memoryStore) Add(title, description string, tag Tag) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	now := s.now()
	s.tasks[id] = &Task{
		ID:          id,
		Title:       title,
		Description: description,
		Tag:         tag,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.logger.Debug("task added", zap.Int("id", int(id)), zap.String("title", title))
	return id
}

func (s *memoryStore) Get(id ID) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (s *memoryStore) Rename(id ID, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	if t.Title != title {
		t.Title = title
		t.UpdatedAt = s.now()
	}
	return true
}

func (s *memoryStore) Toggle(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	if t.Status == StatusCompleted {
		t.Status = StatusPending
	} else {
		t.Status = StatusCompleted
	}
	t.UpdatedAt = s.now()
	return true
}

func (s *memoryStore) Delete(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	s.logger.Debug("task deleted", zap.Int("id", int(id)))
	return true
}

func (s *memoryStore) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, t := range s.tasks {
		st.Total++
		if t.Status == StatusCompleted {
			st.Completed++
		} else {
			st.Pending++
		}
	}
	return st
}

func seed(s Store) {
	s.Add("Buy groceries", "Milk, eggs, bread", TagPersonal)
	s.Add("Review PR #123", "Check the authentication changes", TagUrgent)
	s.Add("Write documentation", "Update API docs for v2", TagWork)
}
