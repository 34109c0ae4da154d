package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"atelier-server-go/db"
	"atelier-server-go/models"
)

// ImportOptions controls Import
type ImportOptions struct {
	ForceOverwrite bool
}

// BuildExport snapshots a collection into a checksummed export payload.
// SourceLegacy exports the raw legacy payload as stored; SourceLocal exports
// the live cache.
func (f *Facade) BuildExport(ctx context.Context, source Source) (models.ExportPayload, error) {
	switch source {
	case SourceLegacy:
		raw, err := f.legacy.Get(ctx, LegacyKey)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return models.ExportPayload{}, fmt.Errorf("read legacy store: %w", err)
		}
		return f.rawPayload(source, raw), nil
	case SourceLocal:
		return f.buildPayload(source, f.ListClassrooms())
	default:
		return models.ExportPayload{}, fmt.Errorf("unknown export source %q", source)
	}
}

func (f *Facade) buildPayload(source Source, data []models.Classroom) (models.ExportPayload, error) {
	if data == nil {
		data = []models.Classroom{}
	}
	raw, err := Serialize(data)
	if err != nil {
		return models.ExportPayload{}, fmt.Errorf("encode export data: %w", err)
	}
	return f.payload(source, raw, len(data)), nil
}

// rawPayload wraps stored bytes without re-encoding them, so fields the
// models do not know survive. A missing or corrupt payload exports as [].
func (f *Facade) rawPayload(source Source, raw []byte) models.ExportPayload {
	var data []models.Classroom
	compact, err := compactJSON(raw)
	if err == nil {
		err = json.Unmarshal(compact, &data)
	}
	if err != nil || data == nil {
		if len(raw) > 0 {
			f.log.Warn().Str("source", string(source)).Msg("stored classrooms are corrupt; exporting an empty list")
		}
		return f.payload(source, []byte("[]"), 0)
	}
	return f.payload(source, compact, len(data))
}

func (f *Facade) payload(source Source, compact []byte, count int) models.ExportPayload {
	return models.ExportPayload{
		Format:     models.ExportFormat,
		Version:    models.ExportVersion,
		Source:     string(source),
		ExportedAt: f.now().UTC(),
		Checksum:   Checksum(compact),
		Count:      count,
		Data:       json.RawMessage(compact),
	}
}

// EncodeExport renders a payload as an indented, human-readable file. HTML
// escaping stays off so the data section keeps the bytes its checksum covers.
func EncodeExport(payload models.ExportPayload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// importError is a parse failure whose message is shown to the user
type importError struct {
	msg   string
	cause error
}

func (e *importError) Error() string { return e.msg }
func (e *importError) Unwrap() error { return e.cause }

// envelope mirrors ExportPayload with the fields that must be validated before decoding data
type envelope struct {
	Format   string          `json:"format"`
	Version  int             `json:"version"`
	Source   string          `json:"source"`
	Checksum *uint32         `json:"checksum"`
	Data     json.RawMessage `json:"data"`
}

// ParseImport accepts a full export payload or a bare classroom array. A
// payload must carry the known format and version, and its checksum, when
// present, must match the data exactly.
func ParseImport(raw []byte) ([]models.Classroom, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &importError{msg: "The file is empty."}
	}

	if trimmed[0] == '[' {
		var data []models.Classroom
		if err := json.Unmarshal(trimmed, &data); err != nil {
			return nil, &importError{msg: "The file is not a valid classroom list.", cause: err}
		}
		return data, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &importError{msg: "The file is not a valid export.", cause: err}
	}
	if env.Format != models.ExportFormat {
		return nil, &importError{msg: fmt.Sprintf("Unknown file format %q.", env.Format)}
	}
	if env.Version != models.ExportVersion {
		return nil, &importError{msg: fmt.Sprintf("Unsupported export version %d.", env.Version)}
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil, &importError{msg: "The export contains no data."}
	}
	if env.Checksum != nil {
		compact, err := compactJSON(env.Data)
		if err != nil {
			return nil, &importError{msg: "Corrupt file: data is not valid JSON.", cause: err}
		}
		if got := Checksum(compact); got != *env.Checksum {
			return nil, &importError{msg: fmt.Sprintf("Corrupt file: checksum mismatch (expected %d, got %d).", *env.Checksum, got)}
		}
	}
	var data []models.Classroom
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &importError{msg: "Corrupt file: data is not a classroom list.", cause: err}
	}
	return data, nil
}

// Import writes a supplied payload to the local store with the same
// conflict, backup and verification steps as Migrate, then clears the
// legacy store. Nothing is written when parsing fails.
func (f *Facade) Import(ctx context.Context, raw []byte, opts ImportOptions) (res Result) {
	defer func() { f.observe("import", res) }()

	data, err := ParseImport(raw)
	if err != nil {
		var ie *importError
		if errors.As(err, &ie) {
			return rejected(ie.msg, ie.cause)
		}
		return rejected("The file could not be read.", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Wait()

	res = f.transferLocked(ctx, transfer{
		data:       data,
		source:     SourceImport,
		backupKind: "import",
		force:      opts.ForceOverwrite,
	})
	if res.Status == StatusOK {
		res.Message = fmt.Sprintf("Imported %d classroom(s).", len(data))
	}
	return res
}

// IsImportError reports whether err came from parsing a supplied file rather
// than from a store
func IsImportError(err error) bool {
	var ie *importError
	return errors.As(err, &ie)
}

// SeedLegacy loads a payload straight into the legacy store to reproduce a
// pre-migration state. It does not switch the active backend. While the
// legacy backend is active the next mutation persists the cache over the
// seeded payload.
func (f *Facade) SeedLegacy(ctx context.Context, raw []byte, clearLedger bool) error {
	data, err := ParseImport(raw)
	if err != nil {
		return err
	}
	encoded, err := Serialize(data)
	if err != nil {
		return fmt.Errorf("encode legacy seed: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Wait()

	if err := f.legacy.Put(ctx, LegacyKey, encoded); err != nil {
		return fmt.Errorf("seed legacy store: %w", err)
	}
	if clearLedger {
		if err := f.ledger.Clear(ctx); err != nil {
			return err
		}
	}
	f.log.Info().Int("classrooms", len(data)).Bool("ledger_cleared", clearLedger).Msg("seeded legacy store")
	return nil
}
