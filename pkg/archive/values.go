package archive

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// toText converts a scanned or caller supplied value to the TEXT stored in an
// archived table. nil stays NULL.
func toText(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	return toString(v)
}

// toString renders a value for display, NULL as empty
func toString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return fmt.Sprintf("%v", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		// Try JSON for composite values
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// stringRecords lifts string records to driver arguments
func stringRecords(records [][]string) [][]interface{} {
	out := make([][]interface{}, len(records))
	for i, rec := range records {
		row := make([]interface{}, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		out[i] = row
	}
	return out
}
