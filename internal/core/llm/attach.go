package llm

import (
	"encoding/base64"
	"mime"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/invoice-lines/constants"
	"github.com/joseph-ayodele/invoice-lines/internal/core/ocr"
)

// ShouldAttachImage decides whether the source image goes to the model alongside
// the extraction result: only for images whose OCR confidence was low, and only
// under maxMB.
func ShouldAttachImage(req RefineRequest, maxMB int) (attach bool, dataURL, mimeType string) {
	attach = req.FilePath != "" &&
		constants.FormatForExt(filepath.Ext(req.FilePath)) == constants.FormatImage &&
		req.OCRConfidence > 0 && req.OCRConfidence < ocr.LowConfidenceThreshold
	if !attach {
		return false, "", ""
	}

	if st, err := os.Stat(req.FilePath); err != nil || st.Size() > int64(maxMB)*1024*1024 {
		return false, "", ""
	}

	u, mt, err := readAsDataURL(req.FilePath)
	if err != nil {
		return false, "", ""
	}
	return true, u, mt
}

func readAsDataURL(path string) (string, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	ext := constants.NormalizeExt(filepath.Ext(path))
	mt := mime.TypeByExtension("." + ext)
	if mt == "" {
		switch ext {
		case "jpg", "jpeg":
			mt = "image/jpeg"
		case "png":
			mt = "image/png"
		case "tif", "tiff":
			mt = "image/tiff"
		default:
			mt = "application/octet-stream"
		}
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(b), mt, nil
}
