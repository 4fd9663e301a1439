// Package hex writes the translator's output artifact: a plain-text `.hack`
// file, one 16-character binary word per line.
package hex

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// Writer persists an already-encoded word sequence to a `.hack` file. It is
// pure over its word sequence: given the same fs, path and words it always
// produces the same bytes.
type Writer struct{ fs afero.Fs }

// NewWriter returns a Writer backed by fs. Pass afero.NewOsFs() for real
// filesystem access, or an afero.NewMemMapFs() in tests.
func NewWriter(fs afero.Fs) Writer {
	return Writer{fs: fs}
}

// Write opens basePath with its extension replaced by ".hack" (truncating
// any existing content), writes one line per word (16 characters of '0'/'1',
// most-significant bit first, followed by '\n'), flushes and closes. It
// returns the path written to.
func (w Writer) Write(basePath string, words []string) (string, error) {
	outPath := replaceExt(basePath, ".hack")

	for i, word := range words {
		if len(word) != 16 || strings.ContainsFunc(word, func(r rune) bool { return r != '0' && r != '1' }) {
			return "", fmt.Errorf("word %d is not a 16-character binary string: %q", i, word)
		}
	}

	file, err := w.fs.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("cannot open %q for writing: %w", outPath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, word := range words {
		if _, err := writer.WriteString(word + "\n"); err != nil {
			return "", fmt.Errorf("cannot write word to %q: %w", outPath, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("cannot flush %q: %w", outPath, err)
	}

	return outPath, nil
}

// replaceExt swaps path's extension (if any) for ext, matching the
// driver's "basepath.with_extension" output naming: foo.vm -> foo.hack,
// never foo.vm.hack.
func replaceExt(path, ext string) string {
	if idx := strings.LastIndexByte(path, '.'); idx >= 0 && !strings.ContainsRune(path[idx:], '/') {
		return path[:idx] + ext
	}
	return path + ext
}
