package fileops

import (
	"strconv"
	"strings"

	"github.com/nh3bh3/cuthttp/internal/server/fserr"
)

// ByteRange is a resolved, inclusive byte range within a file of known
// size.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 { return r.End - r.Start + 1 }

// ParseRange resolves a Range header against size. Only a single
// bytes= range is supported; multi-range requests and ranges starting
// past the end are rejected with RangeNotSatisfiable so the caller can
// answer 416.
func ParseRange(header string, size int64) (ByteRange, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return ByteRange{}, fserr.New(fserr.KindRangeNotSatisfiable, "unsupported range unit")
	}
	if strings.Contains(spec, ",") {
		return ByteRange{}, fserr.New(fserr.KindRangeNotSatisfiable, "multiple ranges not supported")
	}

	start, end, ok := strings.Cut(spec, "-")
	if !ok {
		return ByteRange{}, fserr.New(fserr.KindRangeNotSatisfiable, "malformed range")
	}
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	if start == "" {
		// suffix form: last n bytes
		n, err := strconv.ParseInt(end, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}, fserr.New(fserr.KindRangeNotSatisfiable, "malformed range")
		}
		if n > size {
			n = size
		}
		if size == 0 {
			return ByteRange{}, fserr.New(fserr.KindRangeNotSatisfiable, "empty file")
		}
		return ByteRange{Start: size - n, End: size - 1}, nil
	}

	first, err := strconv.ParseInt(start, 10, 64)
	if err != nil || first < 0 {
		return ByteRange{}, fserr.New(fserr.KindRangeNotSatisfiable, "malformed range")
	}
	if first >= size {
		return ByteRange{}, fserr.New(fserr.KindRangeNotSatisfiable, "range start beyond end of file")
	}

	last := size - 1
	if end != "" {
		last, err = strconv.ParseInt(end, 10, 64)
		if err != nil || last < first {
			return ByteRange{}, fserr.New(fserr.KindRangeNotSatisfiable, "malformed range")
		}
		if last > size-1 {
			last = size - 1
		}
	}
	return ByteRange{Start: first, End: last}, nil
}
