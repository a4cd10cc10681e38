package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/rocrate-exporter/internal/model"
)

func TestGroupFilesByItemFetchesEachItemOnce(t *testing.T) {
	fc := newFakeContent()
	fc.addItem(item1ID, collectionID)
	fc.addItem(item2ID, collectionID)

	files := []model.ExportFileInfo{
		fileInfo(item1ID+"/a.wav", item1ID, 10),
		fileInfo(item2ID+"/b.wav", item2ID, 20),
		fileInfo(item1ID+"/c.wav", item1ID, 30),
		fileInfo(item1ID+"/d.wav", item1ID, 40),
		fileInfo(item2ID+"/e.wav", item2ID, 50),
		fileInfo(item3ID+"/f.wav", item3ID, 60),
		fileInfo(item3ID+"/g.wav", item3ID, 70),
	}

	groups, total := GroupFilesByItem(context.Background(), files, "tok", fc)

	assert.Equal(t, int64(280), total)
	assert.Equal(t, map[string]int{item1ID: 1, item2ID: 1, item3ID: 1}, fc.metadataCalls)

	gs := groups.Groups()
	require.Len(t, gs, 3)
	assert.Equal(t, collectionID+"/"+item1ID, gs[0].Key)
	assert.Equal(t, collectionID+"/"+item2ID, gs[1].Key)
	assert.Equal(t, UngroupedCollectionID+"/"+item3ID, gs[2].Key)
	assert.True(t, gs[2].Ungrouped())
	assert.False(t, gs[0].Ungrouped())

	var names []string
	for _, f := range gs[0].Files {
		names = append(names, f.Filename)
	}
	assert.Equal(t, []string{"a.wav", "c.wav", "d.wav"}, names)
	assert.Equal(t, len(files), groups.FileCount())
}

func TestGroupFilesByItemWithoutParent(t *testing.T) {
	fc := newFakeContent()
	fc.addItem(item1ID, "")

	groups, total := GroupFilesByItem(context.Background(), []model.ExportFileInfo{
		fileInfo(item1ID+"/a.wav", item1ID, 0),
	}, "", fc)

	assert.Equal(t, int64(0), total)
	g, ok := groups.Get(UngroupedCollectionID + "/" + item1ID)
	require.True(t, ok)
	assert.Equal(t, item1ID, g.ItemID)
}
