// Package naming encodes and decodes the <sid>_<heading>_<pitch>.<ext>
// image file names used between acquisition and classification.
package naming

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/streetcover/internal/model"
)

const fieldSep = "_"

// Key identifies one capture: a location and the camera orientation.
type Key struct {
	SID     string
	Heading string
	Pitch   string
}

// Decode parses the base name of path into a Key. Both '/' and '\' are
// treated as directory separators regardless of the host platform, so paths
// recorded on Windows decode the same way on Linux. The location id may not
// contain an underscore: only the first two underscores split fields, and the
// extension is stripped from the pitch field.
func Decode(path string) (Key, error) {
	base := Base(path)

	parts := strings.SplitN(base, fieldSep, 3)
	if len(parts) < 3 {
		return Key{}, model.FormatError(path, eris.Errorf("naming: %q has %d of 3 underscore-separated fields", base, len(parts)))
	}

	pitch := strings.TrimSuffix(parts[2], filepath.Ext(parts[2]))
	k := Key{SID: parts[0], Heading: parts[1], Pitch: pitch}
	if k.SID == "" || k.Heading == "" || k.Pitch == "" {
		return Key{}, model.FormatError(path, eris.Errorf("naming: %q has an empty field", base))
	}
	return k, nil
}

// Base returns the final element of path after normalising separators and
// composing the name to Unicode NFC (macOS hands back decomposed names).
func Base(path string) string {
	p := strings.ReplaceAll(path, `\`, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	return norm.NFC.String(p)
}

// Encode builds the file name for k with the given extension (including the
// leading dot).
func Encode(k Key, ext string) (string, error) {
	if k.SID == "" || k.Heading == "" || k.Pitch == "" {
		return "", eris.New("naming: key has an empty field")
	}
	if strings.ContainsAny(k.SID, `_/\`) {
		return "", eris.Errorf("naming: sid %q contains a reserved character", k.SID)
	}
	if strings.Contains(k.Heading, fieldSep) {
		return "", eris.Errorf("naming: heading %q contains an underscore", k.Heading)
	}
	return k.SID + fieldSep + k.Heading + fieldSep + k.Pitch + ext, nil
}
