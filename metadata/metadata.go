package metadata

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rwcarlsen/goexif/exif"
)

// Extract pulls embedded document/image metadata for the given MIME type.
// Unsupported types yield an empty map; extraction failures are soft and
// simply leave keys absent. maxBytes bounds how much of the file a parser may
// consume (0 means unlimited).
func Extract(path string, mimeType string, maxBytes int64) map[string]interface{} {
	switch mimeType {
	case "image/jpeg", "image/png":
		return Image(path, maxBytes)
	case "application/pdf":
		return PDF(path, maxBytes)
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return DOCX(path, maxBytes)
	default:
		return map[string]interface{}{}
	}
}

// Image extracts a subset of EXIF tags (capture time, camera make and model).
func Image(path string, maxBytes int64) map[string]interface{} {
	meta := make(map[string]interface{})

	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	var reader io.Reader = f
	if maxBytes > 0 {
		reader = io.LimitReader(f, maxBytes)
	}
	x, err := exif.Decode(reader)
	if err != nil {
		return meta
	}

	if tm, err := x.DateTime(); err == nil {
		meta["datetime"] = tm.Format(time.RFC3339)
	}
	if makeTag, err := x.Get(exif.Make); err == nil {
		meta["make"] = makeTag.String()
	}
	if modelTag, err := x.Get(exif.Model); err == nil {
		meta["model"] = modelTag.String()
	}
	return meta
}

// PDF reads the standard document information dictionary.
func PDF(path string, maxBytes int64) map[string]interface{} {
	meta := make(map[string]interface{})

	if maxBytes > 0 {
		info, err := os.Stat(path)
		if err != nil || info.Size() > maxBytes {
			return meta
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	info, err := api.PDFInfo(f, path, nil, false, nil)
	if err != nil {
		return meta
	}

	if info.Title != "" {
		meta["title"] = info.Title
	}
	if info.Author != "" {
		meta["author"] = info.Author
	}
	if info.Creator != "" {
		meta["creator"] = info.Creator
	}
	if info.Producer != "" {
		meta["producer"] = info.Producer
	}
	return meta
}

// DOCX parses core properties from the OOXML package.
func DOCX(path string, maxBytes int64) map[string]interface{} {
	meta := make(map[string]interface{})

	r, err := zip.OpenReader(path)
	if err != nil {
		return meta
	}
	defer r.Close()

	var coreFile *zip.File
	for _, f := range r.File {
		if f.Name == "docProps/core.xml" {
			if maxBytes > 0 && f.UncompressedSize64 > uint64(maxBytes) {
				return meta
			}
			coreFile = f
			break
		}
	}
	if coreFile == nil {
		return meta
	}

	rc, err := coreFile.Open()
	if err != nil {
		return meta
	}
	defer rc.Close()

	type coreProperties struct {
		Title       string `xml:"title"`
		Subject     string `xml:"subject"`
		Creator     string `xml:"creator"`
		Keywords    string `xml:"keywords"`
		Description string `xml:"description"`
	}

	var props coreProperties
	var reader io.Reader = rc
	if maxBytes > 0 {
		reader = io.LimitReader(rc, maxBytes)
	}
	if err := xml.NewDecoder(reader).Decode(&props); err != nil {
		return meta
	}

	if props.Title != "" {
		meta["title"] = props.Title
	}
	if props.Subject != "" {
		meta["subject"] = props.Subject
	}
	if props.Creator != "" {
		meta["creator"] = props.Creator
	}
	if props.Keywords != "" {
		meta["keywords"] = props.Keywords
	}
	if props.Description != "" {
		meta["description"] = props.Description
	}
	return meta
}
