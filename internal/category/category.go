// Package category defines the closed set of file categories and the
// extension-based routing that assigns every file to exactly one of them.
package category

import (
	"errors"
	"path/filepath"
	"strings"
)

// Category is the extension-keyed class of file that determines which node
// owns it. Source files stay on the gateway; the other categories are each
// delegated to a dedicated storage node.
type Category string

const (
	Source  Category = "source"  // .c, kept on the gateway
	PDF     Category = "pdf"     // .pdf
	Text    Category = "text"    // .txt
	Archive Category = "archive" // .zip
)

// Order is the fixed category order used when concatenating per-category
// listings. It is stable across calls.
var Order = []Category{Source, PDF, Text, Archive}

// Delegated lists the categories served by storage nodes, in Order.
var Delegated = []Category{PDF, Text, Archive}

var byExt = map[string]Category{
	".c":   Source,
	".pdf": PDF,
	".txt": Text,
	".zip": Archive,
}

var exts = map[Category]string{
	Source:  ".c",
	PDF:     ".pdf",
	Text:    ".txt",
	Archive: ".zip",
}

// ErrNoExtension is returned for filenames without an extension.
var ErrNoExtension = errors.New("file has no extension")

// ErrUnsupported is returned for extensions outside the closed category set.
var ErrUnsupported = errors.New("unsupported file extension")

// ForFilename maps a filename to its category by extension.
func ForFilename(name string) (Category, error) {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return "", ErrNoExtension
	}
	c, ok := byExt[strings.ToLower(ext)]
	if !ok {
		return "", ErrUnsupported
	}
	return c, nil
}

// ForExt maps a bare extension (with leading dot) to its category.
func ForExt(ext string) (Category, bool) {
	c, ok := byExt[strings.ToLower(ext)]
	return c, ok
}

// Parse maps a category name ("pdf", "text", "archive", "source") to its
// Category.
func Parse(name string) (Category, bool) {
	c := Category(strings.ToLower(name))
	_, ok := exts[c]
	return c, ok
}

// Ext returns the category's file extension, including the leading dot.
func (c Category) Ext() string {
	return exts[c]
}

// IsDelegated reports whether the category is served by a storage node rather
// than by the gateway itself.
func (c Category) IsDelegated() bool {
	return c != Source
}

func (c Category) String() string {
	return string(c)
}
