package activity

import (
	"strings"
	"time"
)

const (
	// VerbRecordWritten is emitted after a record is stored.
	VerbRecordWritten = "persist.record.written"
	// VerbStoreRehydrated is emitted after a stored record is patched into a store.
	VerbStoreRehydrated = "persist.store.rehydrated"

	ObjectTypeRecord = "persist.record"
	ObjectTypeStore  = "persist.store"
)

// PersistEventInput describes one persistence occurrence.
type PersistEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	StoreID    string
	Key        string
	Version    string
	Fields     []string
	Merged     bool
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildRecordWrittenEvent describes a record write. The object is the storage key.
func BuildRecordWrittenEvent(input PersistEventInput) Event {
	event := buildPersistEvent(VerbRecordWritten, ObjectTypeRecord, firstNonBlank(input.Key, input.StoreID), input)
	event.Metadata["merged"] = input.Merged
	return event
}

// BuildStoreRehydratedEvent describes a rehydration. The object is the store.
func BuildStoreRehydratedEvent(input PersistEventInput) Event {
	return buildPersistEvent(VerbStoreRehydrated, ObjectTypeStore, firstNonBlank(input.StoreID, input.Key), input)
}

func buildPersistEvent(verb, objectType, objectID string, input PersistEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	if store := strings.TrimSpace(input.StoreID); store != "" {
		metadata["store_id"] = store
	}
	if key := strings.TrimSpace(input.Key); key != "" {
		metadata["key"] = key
	}
	metadata["version"] = input.Version
	if len(input.Fields) > 0 {
		metadata["fields"] = append([]string{}, input.Fields...)
	}

	if objectID == "" {
		objectID = objectType
	}
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
