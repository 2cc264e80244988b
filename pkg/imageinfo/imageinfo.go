// Package imageinfo identifies rendered output: its format, MIME type and,
// for raster and SVG images, its pixel dimensions.
package imageinfo

import (
	"bytes"
	"encoding/xml"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
)

// Formats recognized by Detect.
const (
	FormatPNG     = "png"
	FormatJPG     = "jpg"
	FormatBMP     = "bmp"
	FormatGIF     = "gif"
	FormatSVG     = "svg"
	FormatPDF     = "pdf"
	FormatUnknown = ""
)

// ErrUnknownFormat is returned for data that matches no known format.
var ErrUnknownFormat = errors.New("imageinfo: unknown format")

// Info describes one rendered document.
type Info struct {
	Format string
	Width  int
	Height int
}

// MIME returns the media type for the format.
func (i Info) MIME() string {
	return MIMEType(i.Format)
}

// MIMEType returns the media type for format, or application/octet-stream.
func MIMEType(format string) string {
	switch format {
	case FormatPNG:
		return "image/png"
	case FormatJPG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	case FormatGIF:
		return "image/gif"
	case FormatSVG:
		return "image/svg+xml"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Extension returns the file extension for format, including the dot.
func Extension(format string) string {
	if format == FormatUnknown {
		return ".bin"
	}
	return "." + format
}

// Detect inspects data.
func Detect(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrUnknownFormat
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return Info{Format: FormatPDF}, nil
	}
	if looksLikeSVG(data) {
		return detectSVG(data)
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, ErrUnknownFormat
	}
	format := name
	if name == "jpeg" {
		format = FormatJPG
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.TrimSpace(head)
	return bytes.HasPrefix(head, []byte("<svg")) ||
		(bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(head, []byte("<svg")))
}

// detectSVG reads the root element's width and height attributes. Missing
// or relative sizes are reported as zero.
func detectSVG(data []byte) (Info, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return Info{}, ErrUnknownFormat
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return Info{}, ErrUnknownFormat
		}
		info := Info{Format: FormatSVG}
		for _, a := range start.Attr {
			switch a.Name.Local {
			case "width":
				info.Width = parseLength(a.Value)
			case "height":
				info.Height = parseLength(a.Value)
			}
		}
		return info, nil
	}
}

func parseLength(v string) int {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}
