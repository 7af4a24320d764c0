package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind classifies an input document by how it must be rasterized.
type Kind string

const (
	KindPostScript  Kind = "postscript" // Ghostscript
	KindPDF         Kind = "pdf"        // go-fitz
	KindImage       Kind = "image"      // already raster, single page
	KindUnsupported Kind = "unsupported"
)

// Info contains detected input type information.
type Info struct {
	MIMEType    string
	Extension   string
	Kind        Kind
	Description string
}

// Detect resolves the input kind from magic bytes, not the filename. Print
// spoolers hand over files with arbitrary names, so the extension means
// nothing.
func Detect(path string) (*Info, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	info := &Info{MIMEType: mtype.String(), Extension: mtype.Extension()}
	classify(info)

	log.Debug().Str("mime", info.MIMEType).Str("kind", string(info.Kind)).Str("file", path).Msg("detected input type")
	return info, nil
}

func classify(info *Info) {
	switch {
	case info.MIMEType == "application/postscript":
		info.Kind = KindPostScript
		info.Description = "PostScript spool document"
	case info.MIMEType == "application/pdf":
		info.Kind = KindPDF
		info.Description = "PDF document"
	case strings.HasPrefix(info.MIMEType, "image/png"),
		strings.HasPrefix(info.MIMEType, "image/jpeg"):
		info.Kind = KindImage
		info.Description = "Raster image"
	default:
		info.Kind = KindUnsupported
		info.Description = fmt.Sprintf("Unsupported input type: %s", info.MIMEType)
	}
}
