package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/jinzhu/copier"
)

// Entity is any normalized record held by the entity cache.
type Entity interface {
	EntityId() string
	// Clone returns a deep copy that shares no slices, maps or pointers with
	// the receiver.
	Clone() Entity
}

// Timestamp is a unix timestamp in milliseconds. The service mixes ISO
// layouts (with and without fractional seconds or zone), so decoding goes
// through dateparse instead of time.Time's strict RFC3339 parser.
type Timestamp int64

func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixNano() / int64(time.Millisecond))
}

func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t)*int64(time.Millisecond)).UTC()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*t = 0
		return nil
	}
	parsed, err := dateparse.ParseAny(s)
	if err != nil {
		return err
	}
	*t = TimestampOf(parsed)
	return nil
}

func deepCopy(dst, src interface{}) {
	// Both sides are always the same concrete model type, copier cannot fail
	// on that.
	_ = copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true})
}
