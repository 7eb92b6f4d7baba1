package session

import (
	"strings"

	"github.com/odvcencio/inkwell/pkg/document"
	"github.com/odvcencio/inkwell/pkg/storage"
	"github.com/odvcencio/inkwell/pkg/telemetry"
)

// StorageBridge forwards SQLite record and setting changes to hub as
// storage.record events.
func StorageBridge(hub *telemetry.Hub) storage.Observer {
	return storage.ObserverFunc(func(e storage.Event) {
		hub.Publish(telemetry.Event{
			Type:      telemetry.EventStorageRecord,
			Timestamp: e.At,
			DocID:     strings.TrimPrefix(docKeyID(e.Key), document.DocKeyPrefix),
			Data:      map[string]any{"op": string(e.Op), "key": e.Key, "bytes": e.Size},
		})
	})
}

func docKeyID(key string) string {
	if strings.HasPrefix(key, document.DocKeyPrefix) && key != document.LegacyKey {
		return key
	}
	return ""
}
