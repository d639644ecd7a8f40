package util

import (
	"io"
	"log"
	"reflect"
	"strconv"
)

// CloseWithErr closes a resource and logs any error.
func CloseWithErr(closer io.Closer, name string) {
	if closer == nil {
		return
	}
	val := reflect.ValueOf(closer)
	if val.Kind() == reflect.Ptr && val.IsNil() {
		return
	}
	if err := closer.Close(); err != nil {
		if name == "" {
			log.Printf("close error: %v", err)
			return
		}
		log.Printf("close %s: %v", name, err)
	}
}

// HumanBytes renders a byte count using the kb/mb/gb units accepted by
// the chunk_size setting.
func HumanBytes(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit*unit:
		return formatUnit(n, unit*unit*unit, "gb")
	case n >= unit*unit:
		return formatUnit(n, unit*unit, "mb")
	case n >= unit:
		return formatUnit(n, unit, "kb")
	default:
		return strconv.FormatInt(n, 10) + "b"
	}
}

func formatUnit(n int64, div int64, suffix string) string {
	if n%div == 0 {
		return strconv.FormatInt(n/div, 10) + suffix
	}
	return strconv.FormatFloat(float64(n)/float64(div), 'f', 1, 64) + suffix
}
