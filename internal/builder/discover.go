package builder

import (
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jpalmerr/bundleserve/build"
)

// DefaultMainAssetPattern matches the HTML entry bundle in the output
// directory root, hashed or not.
const DefaultMainAssetPattern = "index*.html"

// GlobDiscoverer returns a [DiscoverFunc] that picks the most recently
// modified file in the output directory matching pattern. The pattern uses
// doublestar syntax and should match files in the directory root, which is
// where the index fallback looks for them.
//
// The asset name and hash are derived from the file name with
// [build.AssetFromFile]. A non-empty assetType overrides the type derived
// from the extension.
func GlobDiscoverer(pattern, assetType string) DiscoverFunc {
	return func(outDir string) (*build.Asset, error) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid main asset pattern %q", pattern)
		}
		return discover(os.DirFS(outDir), pattern, assetType)
	}
}

func discover(fsys fs.FS, pattern, assetType string) (*build.Asset, error) {
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	// stale bundles from earlier builds may remain; the newest one wins
	newest := ""
	var newestMod int64
	for _, m := range matches {
		fi, err := fs.Stat(fsys, m)
		if err != nil {
			continue
		}
		if mod := fi.ModTime().UnixNano(); newest == "" || mod > newestMod || (mod == newestMod && m < newest) {
			newest, newestMod = m, mod
		}
	}
	if newest == "" {
		return nil, nil
	}

	asset := build.AssetFromFile(path.Base(newest))
	if assetType != "" {
		asset.Type = assetType
	}
	return &asset, nil
}
