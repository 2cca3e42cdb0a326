package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/timesync/internal/config"
	"github.com/oshokin/timesync/internal/domain/offset"
)

// Repository defines persistence operations for offset snapshots.
type Repository interface {
	Load(ctx context.Context) (*offset.Snapshot, error)
	Save(ctx context.Context, snapshot *offset.Snapshot) error
}

// FileRepository stores the snapshot as a JSON document on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON snapshot file.
	path string
	// mu protects concurrent access to the snapshot file.
	mu sync.Mutex
}

// JSON field names of the snapshot document.
const (
	fieldNodeID    = "node_id"
	fieldUpdatedAt = "updated_at"
	fieldOffset    = "offset"
	fieldDirection = "direction"
	fieldMagnitude = "magnitude"
	fieldOffsetNs  = "offset_ns"
	fieldSamples   = "samples"
)

var (
	// ErrNotFound is returned when the snapshot file does not exist yet.
	ErrNotFound = errors.New("snapshot not found")
	// errSnapshotIsNotSet is returned when Save receives nil.
	errSnapshotIsNotSet = errors.New("snapshot is not set")
	// errMissingField is returned when a stored document lacks a field.
	errMissingField = errors.New("missing field")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Save writes the snapshot through a temporary file so readers never see a partial document.
func (r *FileRepository) Save(_ context.Context, snapshot *offset.Snapshot) error {
	if snapshot == nil {
		return errSnapshotIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := toStruct(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	return nil
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*offset.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}

	snapshot, err := fromStruct(&document)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}

	return snapshot, nil
}

// toStruct converts the domain snapshot into a protobuf Struct.
func toStruct(snapshot *offset.Snapshot) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldNodeID:    snapshot.NodeID,
		fieldUpdatedAt: snapshot.UpdatedAt.UTC().Format(time.RFC3339Nano),
		fieldOffset:    snapshot.Offset.String(),
		fieldDirection: snapshot.Offset.Direction().String(),
		fieldMagnitude: snapshot.Offset.Magnitude().String(),
		fieldOffsetNs:  snapshot.Offset.Duration().Nanoseconds(),
		fieldSamples:   snapshot.Samples,
	})
}

// fromStruct converts a protobuf Struct back into the domain snapshot.
// The offset is rebuilt from direction and magnitude, which are exact.
func fromStruct(document *structpb.Struct) (*offset.Snapshot, error) {
	fields := document.GetFields()

	for _, name := range []string{fieldUpdatedAt, fieldDirection, fieldMagnitude, fieldSamples} {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("%w: %s", errMissingField, name)
		}
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldUpdatedAt, err)
	}

	magnitude, err := time.ParseDuration(fields[fieldMagnitude].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldMagnitude, err)
	}

	value := offset.Later(magnitude)
	if fields[fieldDirection].GetStringValue() == offset.DirectionEarlier.String() {
		value = offset.Earlier(magnitude)
	}

	return &offset.Snapshot{
		NodeID:    fields[fieldNodeID].GetStringValue(),
		UpdatedAt: updatedAt,
		Offset:    value,
		Samples:   int(fields[fieldSamples].GetNumberValue()),
	}, nil
}
