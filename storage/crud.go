package storage

import (
	"fmt"

	"atelier-server-go/models"
)

// ListClassrooms returns a copy of the cached classrooms
func (f *Facade) ListClassrooms() []models.Classroom {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := models.CloneClassrooms(f.cache)
	if out == nil {
		return []models.Classroom{}
	}
	return out
}

// CreateClassroom appends a new empty classroom. An empty name defaults to "Classe N".
func (f *Facade) CreateClassroom(name string) models.Classroom {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "" {
		name = fmt.Sprintf("Classe %d", len(f.cache)+1)
	}
	c := models.Classroom{ID: newID("class-", f.now()), Name: name, Children: []models.Child{}}

	next := make([]models.Classroom, len(f.cache), len(f.cache)+1)
	copy(next, f.cache)
	next = append(next, c)
	f.commitLocked(next)
	f.log.Info().Str("classroom_id", c.ID).Str("name", c.Name).Msg("created classroom")
	return models.CloneClassroom(c)
}

// AddChild appends a child to a classroom. Returns nil when the classroom does not exist.
func (f *Facade) AddChild(classroomID, name string) *models.Child {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.classroomIndexLocked(classroomID)
	if idx < 0 {
		return nil
	}
	cls := f.cache[idx]
	if name == "" {
		name = fmt.Sprintf("Enfant %d", len(cls.Children)+1)
	}
	child := models.Child{ID: newID("child-", f.now()), Name: name, History: []models.House{}}

	children := make([]models.Child, len(cls.Children), len(cls.Children)+1)
	copy(children, cls.Children)
	cls.Children = append(children, child)
	f.commitLocked(f.replaceClassroomLocked(idx, cls))

	out := models.CloneChild(child)
	return &out
}

// RenameChild sets a child's name. Returns nil when not found.
func (f *Facade) RenameChild(classroomID, childID, name string) *models.Child {
	return f.updateChild(classroomID, childID, func(ch models.Child) models.Child {
		ch.Name = name
		return ch
	})
}

// ReplaceChildHistory sets the whole history of a child. Appending a house and
// clearing the history are both expressed as a replacement.
func (f *Facade) ReplaceChildHistory(classroomID, childID string, history []models.House) *models.Child {
	h := models.CloneHistory(history)
	if h == nil {
		h = []models.House{}
	}
	return f.updateChild(classroomID, childID, func(ch models.Child) models.Child {
		ch.History = h
		return ch
	})
}

// GetChild returns a copy of the child, nil when not found
func (f *Facade) GetChild(classroomID, childID string) *models.Child {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ci, chi := f.childIndexLocked(classroomID, childID)
	if chi < 0 {
		return nil
	}
	out := models.CloneChild(f.cache[ci].Children[chi])
	return &out
}

// GetClassroom returns a copy of the classroom, nil when not found
func (f *Facade) GetClassroom(classroomID string) *models.Classroom {
	f.mu.RLock()
	defer f.mu.RUnlock()
	idx := f.classroomIndexLocked(classroomID)
	if idx < 0 {
		return nil
	}
	out := models.CloneClassroom(f.cache[idx])
	return &out
}

// DeleteChild removes a child from its classroom. Reports whether it existed.
func (f *Facade) DeleteChild(classroomID, childID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ci, chi := f.childIndexLocked(classroomID, childID)
	if chi < 0 {
		return false
	}
	cls := f.cache[ci]
	children := make([]models.Child, 0, len(cls.Children)-1)
	children = append(children, cls.Children[:chi]...)
	children = append(children, cls.Children[chi+1:]...)
	cls.Children = children
	f.commitLocked(f.replaceClassroomLocked(ci, cls))
	f.log.Info().Str("classroom_id", classroomID).Str("child_id", childID).Msg("deleted child")
	return true
}

func (f *Facade) updateChild(classroomID, childID string, fn func(models.Child) models.Child) *models.Child {
	f.mu.Lock()
	defer f.mu.Unlock()
	ci, chi := f.childIndexLocked(classroomID, childID)
	if chi < 0 {
		return nil
	}
	cls := f.cache[ci]
	children := make([]models.Child, len(cls.Children))
	copy(children, cls.Children)
	children[chi] = fn(children[chi])
	cls.Children = children
	f.commitLocked(f.replaceClassroomLocked(ci, cls))

	out := models.CloneChild(children[chi])
	return &out
}

// replaceClassroomLocked returns a new top-level slice with cls at idx.
// Untouched classrooms are shared; they are never mutated in place.
func (f *Facade) replaceClassroomLocked(idx int, cls models.Classroom) []models.Classroom {
	next := make([]models.Classroom, len(f.cache))
	copy(next, f.cache)
	next[idx] = cls
	return next
}

func (f *Facade) classroomIndexLocked(classroomID string) int {
	for i, c := range f.cache {
		if c.ID == classroomID {
			return i
		}
	}
	return -1
}

func (f *Facade) childIndexLocked(classroomID, childID string) (int, int) {
	ci := f.classroomIndexLocked(classroomID)
	if ci < 0 {
		return -1, -1
	}
	for j, ch := range f.cache[ci].Children {
		if ch.ID == childID {
			return ci, j
		}
	}
	return ci, -1
}
