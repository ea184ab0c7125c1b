package constants

import "strings"

// Source formats stored in extract_job.format.
const (
	FormatText  = "TXT"
	FormatImage = "IMAGE"
	FormatPDF   = "PDF"
)

// AllowedExtensions holds the file extensions accepted for invoice ingestion.
var AllowedExtensions = map[string]string{
	"txt":  FormatText,
	"png":  FormatImage,
	"jpg":  FormatImage,
	"jpeg": FormatImage,
	"tif":  FormatImage,
	"tiff": FormatImage,
	"pdf":  FormatPDF,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// FormatForExt returns the source format for ext, or "" when ext is not accepted.
func FormatForExt(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}
