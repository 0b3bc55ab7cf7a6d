package record

import (
	"strconv"
	"time"

	pverrors "github.com/randalmurphal/planview/internal/errors"
	"github.com/randalmurphal/planview/internal/item"
)

// LoadItem parses the record at path into a planning item.
// The record's minimal fields (id, status) are validated; a record the engine
// cannot understand yields a RECORD_PARSE_FAILED error.
func LoadItem(path string) (*item.Item, error) {
	f, err := Parse(path)
	if err != nil {
		return nil, err
	}
	return DecodeItem(f)
}

// DecodeItem decodes a parsed record into a planning item.
func DecodeItem(f *File) (*item.Item, error) {
	var it item.Item
	if err := f.Decode(&it); err != nil {
		return nil, err
	}

	if !item.ValidateID(it.ID) {
		return nil, pverrors.New(pverrors.CodeRecordParseFailed, "parse record "+f.Path).
			WithWhy("invalid or missing item id " + strconv.Quote(it.ID))
	}
	if it.Kind == "" {
		// Kind may be omitted; the ID prefix implies it.
		if k, ok := item.KindForID(it.ID); ok {
			it.Kind = k
		}
	}
	if !item.IsValidKind(it.Kind) {
		return nil, pverrors.New(pverrors.CodeRecordParseFailed, "parse record "+f.Path).
			WithWhy("invalid kind " + strconv.Quote(string(it.Kind)))
	}
	if it.Status == "" {
		it.Status = item.StatusNotStarted
	}
	if !item.IsValidStatus(it.Status) {
		return nil, pverrors.New(pverrors.CodeRecordParseFailed, "parse record "+f.Path).
			WithWhy("invalid status " + strconv.Quote(string(it.Status)))
	}

	it.Path = f.Path
	return &it, nil
}

// UpdateStatus performs an atomic read-modify-write of a record's status
// field and last-modified marker. Every other header field and the body are
// preserved byte-for-byte.
func UpdateStatus(path string, status item.Status, now time.Time) error {
	f, err := Parse(path)
	if err != nil {
		return err
	}
	f.Set("status", string(status))
	f.Set("updated", now.UTC().Format(time.RFC3339))
	return f.Save()
}
