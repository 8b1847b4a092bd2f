package extract

import (
	"fmt"
	"unicode/utf8"
)

// TextExtractor handles plain text uploads: decode as UTF-8 and hand the
// whole body to the paginator.
type TextExtractor struct{}

func (*TextExtractor) Extract(data []byte) ([]PageText, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("text file is not valid UTF-8")
	}
	return Paginate(string(data)), nil
}
