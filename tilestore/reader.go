package tilestore

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// openReader opens a CSV file, transparently decompressing .zst inputs.
func openReader(name string) (io.ReadCloser, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("tilestore: open %s: %w", name, err)
	}

	if strings.HasSuffix(name, ".zst") {
		dec, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("tilestore: zstd reader for %s: %w", name, err)
		}
		return dec.IOReadCloser(), nil
	}

	return file, nil
}
