package export

import (
	"context"
	"log/slog"

	"github.com/webitel/rocrate-exporter/internal/model"
)

// UngroupedCollectionID collects items whose parent collection could not be
// resolved. It never gets collection metadata.
const UngroupedCollectionID = "unknown-collection"

type Group struct {
	Key          string
	ItemID       string
	CollectionID string
	Files        []model.ExportFileInfo
}

// Ungrouped reports whether the group's collection is unknown.
func (g *Group) Ungrouped() bool {
	return g.CollectionID == UngroupedCollectionID
}

// FilesByItem groups files by "<collectionId>/<itemId>" in first seen order.
type FilesByItem struct {
	order  []string
	groups map[string]*Group
}

func newFilesByItem() *FilesByItem {
	return &FilesByItem{groups: make(map[string]*Group)}
}

func (f *FilesByItem) add(collectionID, itemID string, file model.ExportFileInfo) {
	key := collectionID + "/" + itemID
	g, ok := f.groups[key]
	if !ok {
		g = &Group{Key: key, ItemID: itemID, CollectionID: collectionID}
		f.groups[key] = g
		f.order = append(f.order, key)
	}
	g.Files = append(g.Files, file)
}

// Groups returns the groups in insertion order.
func (f *FilesByItem) Groups() []*Group {
	out := make([]*Group, 0, len(f.order))
	for _, k := range f.order {
		out = append(out, f.groups[k])
	}
	return out
}

func (f *FilesByItem) Get(key string) (*Group, bool) {
	g, ok := f.groups[key]
	return g, ok
}

func (f *FilesByItem) Len() int { return len(f.order) }

// FileCount is the number of files across all groups.
func (f *FilesByItem) FileCount() int {
	n := 0
	for _, g := range f.groups {
		n += len(g.Files)
	}
	return n
}

// GroupFilesByItem resolves the collection of every file's item, fetching each
// item's record once. totalSize is the sum of declared sizes. A failed lookup
// puts the item in the ungrouped bucket instead of failing.
func GroupFilesByItem(ctx context.Context, files []model.ExportFileInfo, token string, client EntityClient) (*FilesByItem, int64) {
	out := newFilesByItem()
	collectionOf := make(map[string]string)
	var totalSize int64

	for _, f := range files {
		totalSize += f.Size
		itemID := f.MemberOf.ID

		collectionID, ok := collectionOf[itemID]
		if !ok {
			collectionID = resolveCollection(ctx, client, itemID, token)
			collectionOf[itemID] = collectionID
		}
		out.add(collectionID, itemID, f)
	}
	return out, totalSize
}

func resolveCollection(ctx context.Context, client EntityClient, itemID, token string) string {
	entity, err := client.GetEntityMetadata(ctx, itemID, token)
	if err != nil {
		slog.WarnContext(ctx, "rocrate_exporter.export.item_lookup_failed",
			slog.String("item_id", itemID),
			slog.Any("error", err),
		)
		return UngroupedCollectionID
	}
	if id := entity.MemberOfID(); id != "" {
		return id
	}
	slog.WarnContext(ctx, "rocrate_exporter.export.item_without_collection", slog.String("item_id", itemID))
	return UngroupedCollectionID
}
