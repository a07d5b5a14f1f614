// Package mimetypes lists the content types a message may carry as an attachment.
package mimetypes

import (
	"mime"
	"strings"
)

type MIME string

const (
	Unknown   MIME = "unknown"
	TextPlain MIME = "text/plain"

	ApplicationPDF  MIME = "application/pdf"
	ApplicationDOC  MIME = "application/msword"
	ApplicationDOCX MIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
)

// Attachable is the allow-list of attachment types, in detection priority order.
var Attachable = []MIME{
	ImageJPEG,
	ImagePNG,
	ImageGIF,
	ApplicationPDF,
	ApplicationDOC,
	ApplicationDOCX,
	TextPlain,
}

// Matches reports whether a detected media type, parameters included, is the expected one.
func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// Parse returns the allow-listed type a declared media type stands for.
// Parameters and case are ignored.
func Parse(declared string) (MIME, bool) {
	for _, candidate := range Attachable {
		if got, ok := Matches(strings.ToLower(strings.TrimSpace(declared)), candidate); ok {
			return got, true
		}
	}
	return Unknown, false
}
