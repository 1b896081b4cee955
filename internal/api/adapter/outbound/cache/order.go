package cache

import (
	"sort"

	"github.com/anthanhphan/go-model-share/internal/api/domain"
)

// DefaultKeyPrefix matches the persisted key format "model_<id>".
const DefaultKeyPrefix = "model_"

// sequencedRecord pairs a record with the order in which its ID was first stored.
type sequencedRecord struct {
	seq    uint64
	record domain.ModelRecord
}

// orderRecords sorts newest UploadedAt first, ties broken by insertion order.
func orderRecords(items []sequencedRecord) []domain.ModelRecord {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.record.UploadedAt.Equal(b.record.UploadedAt) {
			return a.record.UploadedAt.After(b.record.UploadedAt)
		}
		return a.seq < b.seq
	})

	out := make([]domain.ModelRecord, len(items))
	for i, item := range items {
		out[i] = item.record
	}
	return out
}
