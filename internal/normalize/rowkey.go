package normalize

import (
	"strconv"

	"github.com/Tiliavir/entrylog/internal/model"
)

// keyExtractor derives a candidate selection key for a row at a position.
type keyExtractor struct {
	name string
	key  func(row model.EntryRow, index int) (string, bool)
}

// keyExtractors are tried in order; the first that yields a key wins.
// Only the logId extractor gives a key that survives a refetch.
var keyExtractors = []keyExtractor{
	{
		name: "logId",
		key: func(row model.EntryRow, _ int) (string, bool) {
			return row.LogID, row.LogID != ""
		},
	},
	{
		name: "userId",
		key: func(row model.EntryRow, index int) (string, bool) {
			if row.UserID == "" {
				return "", false
			}
			return row.UserID + "-" + timestampOrIndex(row, index), true
		},
	},
	{
		name: "rowId",
		key: func(row model.EntryRow, index int) (string, bool) {
			id := row.ID
			if id == "" {
				id = strconv.Itoa(index)
			}
			return id + "-" + timestampOrIndex(row, index), true
		},
	},
}

func timestampOrIndex(row model.EntryRow, index int) string {
	if row.LogTimestamp != nil {
		return strconv.FormatInt(*row.LogTimestamp, 10)
	}
	return strconv.Itoa(index)
}

// RowKey returns the selection key of the row at index within the current page.
// It is never empty.
func RowKey(row model.EntryRow, index int) string {
	k, _ := rowKey(row, index)
	return k
}

// RowKeySource names the extractor that produced the row's key.
func RowKeySource(row model.EntryRow, index int) string {
	_, source := rowKey(row, index)
	return source
}

func rowKey(row model.EntryRow, index int) (string, string) {
	for _, x := range keyExtractors {
		if k, ok := x.key(row, index); ok && k != "" {
			return k, x.name
		}
	}
	return strconv.Itoa(index), "index"
}

// RowKeys derives keys for a whole page. Rows whose derived keys collide get
// their position appended, so keys are unique within one pass.
func RowKeys(rows []model.EntryRow) []string {
	keys := make([]string, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		k := RowKey(row, i)
		for seen[k] {
			k += "#" + strconv.Itoa(i)
		}
		seen[k] = true
		keys[i] = k
	}
	return keys
}
