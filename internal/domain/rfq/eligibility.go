package rfq

import "strings"

type FileKind string

const (
	FileKindPart     FileKind = "part"
	FileKindAssembly FileKind = "assembly"
	FileKindDrawing  FileKind = "drawing"
	FileKindOther    FileKind = "other"
)

var extensionKinds = map[string]FileKind{
	"sldprt": FileKindPart,
	"prt":    FileKindPart,
	"ipt":    FileKindPart,
	"par":    FileKindPart,
	"x_t":    FileKindPart,
	"x_b":    FileKindPart,
	"sldasm": FileKindAssembly,
	"asm":    FileKindAssembly,
	"iam":    FileKindAssembly,
	"slddrw": FileKindDrawing,
	"drw":    FileKindDrawing,
	"idw":    FileKindDrawing,
	"dwg":    FileKindDrawing,
}

// ClassifyExtension maps a CAD file extension (case-insensitive, dot optional)
// to its file kind.
func ClassifyExtension(ext string) FileKind {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if kind, ok := extensionKinds[normalized]; ok {
		return kind
	}
	return FileKindOther
}

func (k FileKind) IsModel() bool {
	return k == FileKindPart || k == FileKindAssembly
}

// RequiredExports lists the export kinds still missing for a source file.
// Parts and assemblies need STEP, drawings need PDF; anything else needs nothing.
func RequiredExports(ext string, step ExportRecord, pdf ExportRecord) []ExportKind {
	switch kind := ClassifyExtension(ext); {
	case kind.IsModel() && !step.Generated:
		return []ExportKind{ExportStep}
	case kind == FileKindDrawing && !pdf.Generated:
		return []ExportKind{ExportPDF}
	default:
		return nil
	}
}
