package models

import (
	"encoding/json"
	"time"
)

// Part is one placed shape of a house (the square body or the triangle roof)
type Part struct {
	Type  string  `json:"type"`  // Shape type: "square" or "triangle"
	Color string  `json:"color"` // Shape color: "red", "blue" or "yellow"
	ID    string  `json:"id"`    // Drag identifier assigned by the client
	Top   float64 `json:"top"`   // Position inside the playground
	Left  float64 `json:"left"`
}

// House is a completed body + roof pair. Never edited once appended to a history.
type House struct {
	Body Part `json:"body"`
	Roof Part `json:"roof"`
}

// Child represents a child and the ordered list of houses they built
type Child struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	History []House `json:"history"`
}

// Classroom represents a class and the children it owns
type Classroom struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Children []Child `json:"children"`
}

// ExportFormat identifies export files produced by this service
const ExportFormat = "atelier-classrooms"

// ExportVersion is the only export schema version understood on import
const ExportVersion = 1

// ExportPayload is the self-describing, checksummed snapshot used for backups,
// migration verification and user-facing export/import. Data is kept as raw
// JSON so a legacy payload is exported exactly as stored; Checksum covers its
// compact form.
type ExportPayload struct {
	Format     string          `json:"format"`
	Version    int             `json:"version"`
	Source     string          `json:"source"`
	ExportedAt time.Time       `json:"exportedAt"`
	Checksum   uint32          `json:"checksum"`
	Count      int             `json:"count"`
	Data       json.RawMessage `json:"data"`
}

// MigrationStatus is the ledger record persisted once a migration, import or reset completed
type MigrationStatus struct {
	Source      string    `json:"source"`
	Dest        string    `json:"dest"`
	Count       int       `json:"count"`
	Checksum    uint32    `json:"checksum"`
	CompletedAt time.Time `json:"completedAt"`
}

// CloneClassrooms returns a structural copy so callers never share slices with the cache
func CloneClassrooms(in []Classroom) []Classroom {
	if in == nil {
		return nil
	}
	out := make([]Classroom, len(in))
	for i, c := range in {
		out[i] = CloneClassroom(c)
	}
	return out
}

// CloneClassroom copies a classroom and its children
func CloneClassroom(c Classroom) Classroom {
	out := c
	if c.Children != nil {
		out.Children = make([]Child, len(c.Children))
		for i, ch := range c.Children {
			out.Children[i] = CloneChild(ch)
		}
	}
	return out
}

// CloneChild copies a child and its history
func CloneChild(ch Child) Child {
	out := ch
	out.History = CloneHistory(ch.History)
	return out
}

// CloneHistory copies a history slice. Houses are plain values.
func CloneHistory(h []House) []House {
	if h == nil {
		return nil
	}
	out := make([]House, len(h))
	copy(out, h)
	return out
}
