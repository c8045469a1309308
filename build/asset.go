package build

import (
	"path"
	"strings"
)

// Asset describes the main entry bundle produced by a build.
//
// Asset is a plain value; the zero value has no type and no name and is never
// served as a fallback page.
type Asset struct {
	// Type is the asset type, e.g. "html" or "js".
	Type string `json:"type"`

	// Name is the bundle file name without content hash, e.g. "index.html".
	Name string `json:"name"`

	// Hash is the content hash inserted into the bundle name. May be empty.
	Hash string `json:"hash,omitempty"`
}

// IsHTML reports whether the asset can serve as a single-page fallback.
// The type must be exactly "html"; [AssetFromFile] lower-cases extensions.
func (a Asset) IsHTML() bool {
	return a.Type == "html"
}

// BundleName returns the generated file name of the asset.
//
// With withHash set and a non-empty Hash, the hash is inserted before the
// extension: "index.html" with hash "a1b2" becomes "index.a1b2.html".
// Otherwise Name is returned unchanged.
func (a Asset) BundleName(withHash bool) string {
	if !withHash || a.Hash == "" {
		return a.Name
	}
	ext := path.Ext(a.Name)
	base := strings.TrimSuffix(a.Name, ext)
	return base + "." + a.Hash + ext
}

// AssetFromFile derives an Asset from a generated bundle file name.
//
// A name of the form "base.hash.ext" yields Name "base.ext" and Hash "hash";
// any other name is used as is with an empty hash. The type is the extension
// without the leading dot, lower-cased.
func AssetFromFile(file string) Asset {
	file = path.Base(file)
	ext := path.Ext(file)
	a := Asset{
		Type: strings.ToLower(strings.TrimPrefix(ext, ".")),
		Name: file,
	}
	stem := strings.TrimSuffix(file, ext)
	if idx := strings.LastIndex(stem, "."); idx > 0 && idx < len(stem)-1 {
		a.Name = stem[:idx] + ext
		a.Hash = stem[idx+1:]
	}
	return a
}
