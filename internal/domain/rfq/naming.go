package rfq

import (
	"fmt"
	"path"
	"strings"
)

const unknownPartNumber = "Unknown"

var fileNameReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
	"\"", "-", "<", "-", ">", "-", "|", "-",
)

// ReleaseFileName builds the archive entry name for a generated deliverable:
// {part number or Unknown}[_REV{revision}].{step|pdf}
func ReleaseFileName(partNumber string, revision string, kind ExportKind) string {
	base := strings.TrimSpace(partNumber)
	if base == "" {
		base = unknownPartNumber
	}
	if rev := strings.TrimSpace(revision); rev != "" {
		base += "_REV" + rev
	}
	return fileNameReplacer.Replace(base) + "." + kind.Extension()
}

// UniqueName returns name, or name with a -N suffix before the extension when
// it was already taken. The chosen name is recorded in taken.
func UniqueName(name string, taken map[string]struct{}) string {
	key := strings.ToLower(name)
	if _, ok := taken[key]; !ok {
		taken[key] = struct{}{}
		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			taken[strings.ToLower(candidate)] = struct{}{}
			return candidate
		}
	}
}

// FormatRFQNumber renders the human-readable RFQ number for a sequence value.
func FormatRFQNumber(seq int64) string {
	return fmt.Sprintf("RFQ-%06d", seq)
}

// ArchiveDirName is the per-RFQ output directory name: the RFQ number when
// set, the identifier otherwise.
func ArchiveDirName(number string, id string) string {
	if n := strings.TrimSpace(number); n != "" {
		return fileNameReplacer.Replace(n)
	}
	return fileNameReplacer.Replace(strings.TrimSpace(id))
}
