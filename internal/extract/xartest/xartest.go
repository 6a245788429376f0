// Package xartest builds small xar archives for tests that need flat
// package fixtures without external tools.
package xartest

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"
)

type node struct {
	name     string
	data     []byte
	children map[string]*node
}

// Build assembles a xar archive from slash separated paths and contents.
// File data is stored zlib compressed, like pkgbuild does.
func Build(entries map[string][]byte) ([]byte, error) {
	root := &node{children: map[string]*node{}}
	for p, data := range entries {
		parts := strings.Split(p, "/")
		n := root
		for i, part := range parts {
			child, ok := n.children[part]
			if !ok {
				child = &node{name: part, children: map[string]*node{}}
				n.children[part] = child
			}
			if i == len(parts)-1 {
				child.data = data
			}
			n = child
		}
	}

	var heap, toc bytes.Buffer
	id := 0
	var emit func(n *node) error
	emit = func(n *node) error {
		names := make([]string, 0, len(n.children))
		for name := range n.children {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			c := n.children[name]
			id++
			fmt.Fprintf(&toc, `<file id="%d"><name>`, id)
			if err := xml.EscapeText(&toc, []byte(c.name)); err != nil {
				return err
			}
			toc.WriteString(`</name>`)
			if len(c.children) > 0 {
				toc.WriteString(`<type>directory</type>`)
				if err := emit(c); err != nil {
					return err
				}
			} else {
				var z bytes.Buffer
				zw := zlib.NewWriter(&z)
				if _, err := zw.Write(c.data); err != nil {
					return err
				}
				if err := zw.Close(); err != nil {
					return err
				}
				fmt.Fprintf(&toc, `<type>file</type><data><length>%d</length><offset>%d</offset><size>%d</size><encoding style="application/x-gzip"/></data>`,
					z.Len(), heap.Len(), len(c.data))
				heap.Write(z.Bytes())
			}
			toc.WriteString(`</file>`)
		}
		return nil
	}
	if err := emit(root); err != nil {
		return nil, err
	}

	xmlTOC := `<?xml version="1.0" encoding="UTF-8"?><xar><toc>` + toc.String() + `</toc></xar>`
	var ztoc bytes.Buffer
	zw := zlib.NewWriter(&ztoc)
	if _, err := zw.Write([]byte(xmlTOC)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	hdr := []any{
		uint32(0x78617221), // "xar!"
		uint16(28),
		uint16(1),
		uint64(ztoc.Len()),
		uint64(len(xmlTOC)),
		uint32(0),
	}
	for _, v := range hdr {
		if err := binary.Write(&out, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}
	out.Write(ztoc.Bytes())
	out.Write(heap.Bytes())
	return out.Bytes(), nil
}

// Write builds an archive and writes it to path
func Write(t testing.TB, path string, entries map[string][]byte) {
	t.Helper()
	data, err := Build(entries)
	if err != nil {
		t.Fatalf("Failed to build xar: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write xar: %v", err)
	}
}
