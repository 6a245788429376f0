package extract

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ralt/pkgimport/internal/utils"
	"github.com/sirupsen/logrus"
)

// SevenZip extracts containers with the 7-Zip command line tool
type SevenZip struct {
	Path    string
	Timeout time.Duration

	lastDiagnostic string
}

// NewSevenZip returns a SevenZip using path, or the first of 7zz and 7z on
// $PATH when path is empty. It returns nil when no binary is available.
func NewSevenZip(path string, timeout time.Duration) *SevenZip {
	bin := lookup(path, "7zz", "7z")
	if bin == "" {
		return nil
	}
	return &SevenZip{Path: bin, Timeout: timeout}
}

// Extract implements Extractor
func (s *SevenZip) Extract(src, dest string) bool {
	if s == nil {
		return false
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		logrus.Warnf("Could not create %s: %v", dest, err)
		return false
	}

	msg, err := run(s.Timeout, s.Path, "x", src, "-o"+dest, "-y")
	if err != nil {
		s.lastDiagnostic = msg
		if msg != "" {
			logrus.Warnf("Warning extracting %s: %s", src, msg)
		} else {
			logrus.Warnf("Warning extracting %s: %v", src, err)
		}
	}

	return utils.DirHasEntries(dest)
}

// Diagnostic returns the output of the last failed tool run
func (s *SevenZip) Diagnostic() string {
	if s == nil {
		return ""
	}
	return s.lastDiagnostic
}

// Dmg2Img converts disk images to raw images 7-Zip can read
type Dmg2Img struct {
	Path    string
	Timeout time.Duration
}

// NewDmg2Img returns a Dmg2Img using path or dmg2img on $PATH, or nil
func NewDmg2Img(path string, timeout time.Duration) *Dmg2Img {
	bin := lookup(path, "dmg2img")
	if bin == "" {
		return nil
	}
	return &Dmg2Img{Path: bin, Timeout: timeout}
}

// Convert implements Converter
func (d *Dmg2Img) Convert(src, dest string) bool {
	if d == nil {
		return false
	}
	msg, err := run(d.Timeout, d.Path, src, dest)
	if err != nil {
		if msg != "" {
			logrus.Warnf("Warning converting %s with dmg2img: %s", src, msg)
		} else {
			logrus.Warnf("Warning converting %s with dmg2img: %v", src, err)
		}
		return false
	}

	info, err := os.Stat(dest)
	return err == nil && info.Size() > 0
}

func lookup(explicit string, names ...string) string {
	if explicit != "" {
		if p, err := exec.LookPath(explicit); err == nil {
			return p
		}
		logrus.Warnf("%s not found", explicit)
		return ""
	}
	for _, name := range names {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// run executes a tool and returns its stderr, or stdout when stderr is
// empty, trimmed
func run(timeout time.Duration, bin string, args ...string) (string, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logrus.Debugf("Running %s %s", bin, strings.Join(args, " "))
	err := cmd.Run()

	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		msg = strings.TrimSpace(stdout.String())
	}
	return msg, err
}
