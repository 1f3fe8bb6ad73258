package mongodriver

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Result implements driver.Result.
type Result struct {
	rowsAffected int64
}

// LastInsertId is not supported, identifiers are part of the inserted
// columns.
func (r *Result) LastInsertId() (int64, error) {
	return 0, fmt.Errorf("mongodriver: LastInsertId not supported")
}

// RowsAffected returns the number of affected rows.
func (r *Result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// newResult reads a write command reply. Every command counts the
// documents it matched, an update that stores unchanged values still
// reports its rows.
func newResult(command string, reply bson.D) (*Result, error) {
	var n int64
	for _, e := range reply {
		switch e.Key {
		case "n":
			n = toInt64(e.Value)
		case "writeErrors":
			if err := writeErrors(command, e.Value); err != nil {
				return nil, err
			}
		}
	}
	return &Result{rowsAffected: n}, nil
}

func writeErrors(command string, v any) error {
	arr, ok := v.(bson.A)
	if !ok || len(arr) == 0 {
		return nil
	}
	var msgs []string
	for _, we := range arr {
		doc, ok := we.(bson.D)
		if !ok {
			continue
		}
		var code int64
		var msg string
		for _, e := range doc {
			switch e.Key {
			case "code":
				code = toInt64(e.Value)
			case "errmsg":
				msg, _ = e.Value.(string)
			}
		}
		msgs = append(msgs, fmt.Sprintf("(%d) %s", code, msg))
	}
	return fmt.Errorf("mongodriver: %s: %s", command, strings.Join(msgs, "; "))
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
