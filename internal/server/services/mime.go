package services

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/gabriel-vasile/mimetype"
)

// resolveMime picks the MIME type of a file being promoted: the declared
// type wins, then content sniffing, then the extension of name. r is
// rewound to the start before returning.
func resolveMime(declared *string, name string, r io.ReadSeeker) (string, error) {
	if declared != nil && *declared != "" {
		return *declared, nil
	}

	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("detect mime: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind: %w", err)
	}

	if !mt.Is(common.DefaultMimeType) {
		return mt.String(), nil
	}

	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt, nil
	}

	return common.DefaultMimeType, nil
}
