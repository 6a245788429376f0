package extract

import (
	"compress/bzip2"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/ralt/pkgimport/internal/scanner"
	"github.com/ralt/pkgimport/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

// Xar extracts flat packages natively. Flat packages are xar archives: a
// fixed header, a zlib compressed XML table of contents and a heap. Only
// the archive's own entries are written; component payloads stay packed.
type Xar struct{}

const (
	xarHeaderMagic = 0x78617221 // "xar!"
	xarHeaderSize  = 28
)

type xarHeader struct {
	Magic             uint32
	Size              uint16
	Version           uint16
	TOCCompressed     uint64
	TOCUncompressed   uint64
	ChecksumAlgorithm uint32
}

type xarTOC struct {
	Files []xarFile `xml:"toc>file"`
}

type xarFile struct {
	Name  string    `xml:"name"`
	Type  string    `xml:"type"`
	Data  *xarData  `xml:"data"`
	Files []xarFile `xml:"file"`
}

type xarData struct {
	Length   int64 `xml:"length"`
	Offset   int64 `xml:"offset"`
	Size     int64 `xml:"size"`
	Encoding struct {
		Style string `xml:"style,attr"`
	} `xml:"encoding"`
}

// Extract implements Extractor
func (Xar) Extract(src, dest string) bool {
	if err := ExtractXar(src, dest); err != nil {
		logrus.Debugf("Native xar extraction of %s failed: %v", src, err)
	}
	return utils.DirHasEntries(dest)
}

// ExtractXar writes every file and directory of the xar archive at src
// below dest
func ExtractXar(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	var hdr xarHeader
	if err := binary.Read(f, binary.BigEndian, &hdr); err != nil {
		return fmt.Errorf("failed to read xar header: %w", err)
	}
	if hdr.Magic != xarHeaderMagic {
		return errors.New("not a xar archive")
	}
	if hdr.Size < xarHeaderSize {
		return fmt.Errorf("invalid xar header size %d", hdr.Size)
	}

	tocReader, err := zlib.NewReader(io.NewSectionReader(f, int64(hdr.Size), int64(hdr.TOCCompressed)))
	if err != nil {
		return fmt.Errorf("failed to open xar toc: %w", err)
	}
	defer tocReader.Close()

	var toc xarTOC
	if err := xml.NewDecoder(io.LimitReader(tocReader, int64(hdr.TOCUncompressed))).Decode(&toc); err != nil {
		return fmt.Errorf("failed to parse xar toc: %w", err)
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}

	heap := int64(hdr.Size) + int64(hdr.TOCCompressed)
	return writeXarFiles(f, heap, toc.Files, dest, 0)
}

// writeXarFiles writes files into dir. Directories nested deeper than
// scanner.MaxDepth below the archive root are skipped.
func writeXarFiles(f *os.File, heap int64, files []xarFile, dir string, depth int) error {
	for _, file := range files {
		if file.Name == "" || file.Name == "." || file.Name == ".." || strings.ContainsAny(file.Name, `/\`) {
			logrus.Warnf("Skipping unsafe xar entry %q", file.Name)
			continue
		}
		target := filepath.Join(dir, file.Name)

		switch file.Type {
		case "directory":
			if depth >= scanner.MaxDepth {
				logrus.Warnf("Skipping xar directory %s nested deeper than %d levels", file.Name, scanner.MaxDepth)
				continue
			}
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			if err := writeXarFiles(f, heap, file.Files, target, depth+1); err != nil {
				return err
			}
		case "file", "":
			if file.Data == nil {
				if err := os.WriteFile(target, nil, 0644); err != nil {
					return err
				}
				continue
			}
			if err := writeXarData(f, heap, file.Data, target); err != nil {
				return fmt.Errorf("%s: %w", file.Name, err)
			}
		default:
			logrus.Debugf("Skipping xar entry %s of type %s", file.Name, file.Type)
		}
	}
	return nil
}

func writeXarData(f *os.File, heap int64, data *xarData, target string) error {
	section := io.NewSectionReader(f, heap+data.Offset, data.Length)

	var r io.Reader
	switch data.Encoding.Style {
	case "", "application/octet-stream":
		r = section
	case "application/x-gzip":
		// xar's "gzip" is a zlib stream
		zr, err := zlib.NewReader(section)
		if err != nil {
			return err
		}
		defer zr.Close()
		r = zr
	case "application/x-bzip2":
		r = bzip2.NewReader(section)
	case "application/x-xz":
		xr, err := xz.NewReader(section)
		if err != nil {
			return err
		}
		r = xr
	default:
		return fmt.Errorf("unsupported encoding %s", data.Encoding.Style)
	}

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	limit := data.Size
	if limit <= 0 {
		limit = data.Length
	}
	if _, err := io.Copy(out, io.LimitReader(r, limit)); err != nil {
		return err
	}
	return nil
}

