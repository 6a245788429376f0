package bundle

import (
	"bytes"
	"os"

	"golang.org/x/text/encoding/charmap"
)

// ParseInfoFile reads a legacy bundle package .info file: one
// "Key value" pair per line, usually MacRoman encoded
func ParseInfoFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		parts := bytes.Fields(line)
		if len(parts) < 2 {
			continue
		}
		key := parts[0]
		value := bytes.TrimLeft(line[bytes.Index(line, key)+len(key):], " \t")
		fields[decodeMacRoman(key)] = decodeMacRoman(value)
	}
	return fields, nil
}

func decodeMacRoman(b []byte) string {
	s, err := charmap.Macintosh.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
