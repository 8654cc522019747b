// Package byterange models the read window requested for a resident object:
// the whole object, everything from an offset, an inclusive span, or the last
// n bytes. It parses HTTP Range headers and resolves a window against an
// object size.
package byterange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the Range variants.
type Kind int

const (
	KindFull Kind = iota
	KindStartOffset
	KindInclusive
	KindSuffix
)

var (
	ErrInvalidRange              = errors.New("invalid range")
	ErrUnsupportedUnit           = errors.New("unsupported range unit")
	ErrRangeStartExceedsFileSize = errors.New("range start exceeds file size")
	ErrRangeEndExceedsFileSize   = errors.New("range end exceeds file size")
)

// Range is a requested read window. Use the constructors; the zero value is
// the full object.
type Range struct {
	Kind  Kind
	Start int64
	End   int64
	// Length is the suffix length for KindSuffix.
	Length int64
}

func Full() Range {
	return Range{Kind: KindFull}
}

// StartOffset reads from start to the end of the object.
func StartOffset(start int64) Range {
	return Range{Kind: KindStartOffset, Start: start}
}

// Inclusive reads bytes start..end, both ends included.
func Inclusive(start, end int64) Range {
	return Range{Kind: KindInclusive, Start: start, End: end}
}

// Suffix reads the last n bytes, or the whole object when it is shorter.
func Suffix(n int64) Range {
	return Range{Kind: KindSuffix, Length: n}
}

func (r Range) IsFull() bool {
	return r.Kind == KindFull
}

// String renders r in HTTP Range header form. The full range renders as "".
func (r Range) String() string {
	switch r.Kind {
	case KindStartOffset:
		return fmt.Sprintf("bytes=%d-", r.Start)
	case KindInclusive:
		return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
	case KindSuffix:
		return fmt.Sprintf("bytes=-%d", r.Length)
	default:
		return ""
	}
}

// Error reports a range that does not fit the object it was applied to.
type Error struct {
	Err      error
	Start    int64
	End      int64
	FileSize int64
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Err, ErrRangeStartExceedsFileSize):
		return fmt.Sprintf("%v: start %d, file size %d", e.Err, e.Start, e.FileSize)
	case errors.Is(e.Err, ErrRangeEndExceedsFileSize):
		return fmt.Sprintf("%v: end %d, file size %d", e.Err, e.End, e.FileSize)
	default:
		return fmt.Sprintf("%v: %d-%d", e.Err, e.Start, e.End)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Window resolves r against an object of the given size and returns the
// offset of the first byte and the number of bytes to read.
func (r Range) Window(size int64) (offset, length int64, err error) {
	switch r.Kind {
	case KindFull:
		return 0, size, nil

	case KindStartOffset:
		if r.Start < 0 {
			return 0, 0, &Error{Err: ErrInvalidRange, Start: r.Start, End: -1, FileSize: size}
		}
		if size <= r.Start {
			return 0, 0, &Error{Err: ErrRangeStartExceedsFileSize, Start: r.Start, FileSize: size}
		}
		return r.Start, size - r.Start, nil

	case KindInclusive:
		if r.Start < 0 || r.Start > r.End {
			return 0, 0, &Error{Err: ErrInvalidRange, Start: r.Start, End: r.End, FileSize: size}
		}
		if size <= r.End {
			return 0, 0, &Error{Err: ErrRangeEndExceedsFileSize, Start: r.Start, End: r.End, FileSize: size}
		}
		return r.Start, r.End - r.Start + 1, nil

	case KindSuffix:
		if r.Length < 0 {
			return 0, 0, &Error{Err: ErrInvalidRange, Start: -r.Length, FileSize: size}
		}
		n := min(r.Length, size)
		return size - n, n, nil

	default:
		return 0, 0, ErrInvalidRange
	}
}

// Parse reads an HTTP Range header value. An empty header is the full range.
// Only the first of several comma-separated ranges is honored.
func Parse(header string) (Range, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Full(), nil
	}

	unit, spec, ok := strings.Cut(header, "=")
	if !ok {
		return Range{}, ErrInvalidRange
	}
	if !strings.EqualFold(strings.TrimSpace(unit), "bytes") {
		return Range{}, ErrUnsupportedUnit
	}

	first, _, _ := strings.Cut(spec, ",")
	first = strings.TrimSpace(first)

	startStr, endStr, ok := strings.Cut(first, "-")
	if !ok {
		return Range{}, ErrInvalidRange
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	switch {
	case startStr == "" && endStr == "":
		return Range{}, ErrInvalidRange

	case startStr == "":
		n, err := parseOffset(endStr)
		if err != nil {
			return Range{}, err
		}
		if n == 0 {
			return Range{}, ErrInvalidRange
		}
		return Suffix(n), nil

	case endStr == "":
		start, err := parseOffset(startStr)
		if err != nil {
			return Range{}, err
		}
		return StartOffset(start), nil

	default:
		start, err := parseOffset(startStr)
		if err != nil {
			return Range{}, err
		}
		end, err := parseOffset(endStr)
		if err != nil {
			return Range{}, err
		}
		if start > end {
			return Range{}, ErrInvalidRange
		}
		return Inclusive(start, end), nil
	}
}

// ContentRange formats a Content-Range header value for a served window.
func ContentRange(offset, length, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, size)
}

// UnsatisfiedContentRange formats the Content-Range header sent with 416.
func UnsatisfiedContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

func parseOffset(s string) (int64, error) {
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, ErrInvalidRange
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	return v, nil
}
