package session

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

const tailChunkSize = 8 * 1024

// readTail returns the last n lines of the file at path. It reads backwards from
// the end in fixed-size chunks and stops as soon as n complete lines are buffered,
// so the cost is bounded by the size of the tail rather than the file.
func readTail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	buf, err := tailBytes(f, info.Size(), n)
	if err != nil {
		return nil, fmt.Errorf("tail %s: %w", path, err)
	}
	if len(buf) == 0 {
		return nil, nil
	}

	text := strings.ToValidUTF8(string(buf), "")
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}

func tailBytes(r io.ReaderAt, size int64, n int) ([]byte, error) {
	var buf []byte
	offset := size
	for offset > 0 {
		readSize := int64(tailChunkSize)
		if offset < readSize {
			readSize = offset
		}
		offset -= readSize

		chunk := make([]byte, readSize)
		if _, err := r.ReadAt(chunk, offset); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(chunk, buf...)

		if completeLines(buf) >= n {
			break
		}
	}
	return buf, nil
}

// completeLines counts the lines in buf that are known to start after a newline,
// i.e. lines that cannot have been cut by the chunk boundary.
func completeLines(buf []byte) int {
	separators := bytes.Count(buf, []byte{'\n'})
	if len(buf) > 0 && buf[len(buf)-1] == '\n' {
		separators--
	}
	return separators
}
