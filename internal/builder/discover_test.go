package builder

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGlobDiscoverer(t *testing.T) {
	tests := []struct {
		name      string
		files     []string
		pattern   string
		assetType string
		wantNil   bool
		wantName  string
		wantHash  string
		wantType  string
	}{
		{
			name:     "hashed html",
			files:    []string{"index.a1b2.html", "main.js"},
			pattern:  DefaultMainAssetPattern,
			wantName: "index.html",
			wantHash: "a1b2",
			wantType: "html",
		},
		{
			name:     "unhashed html",
			files:    []string{"index.html"},
			pattern:  DefaultMainAssetPattern,
			wantName: "index.html",
			wantType: "html",
		},
		{
			name:     "javascript entry",
			files:    []string{"main.ff00.js"},
			pattern:  "main*.js",
			wantName: "main.js",
			wantHash: "ff00",
			wantType: "js",
		},
		{
			name:      "type override",
			files:     []string{"app.htm"},
			pattern:   "app*.htm",
			assetType: "html",
			wantName:  "app.htm",
			wantType:  "html",
		},
		{
			name:    "no match",
			files:   []string{"main.js"},
			pattern: DefaultMainAssetPattern,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, filepath.Join(dir, f), "x")
			}

			asset, err := GlobDiscoverer(tt.pattern, tt.assetType)(dir)
			if err != nil {
				t.Fatalf("discover error = %v", err)
			}
			if tt.wantNil {
				if asset != nil {
					t.Errorf("asset = %+v, want nil", asset)
				}
				return
			}
			if asset == nil {
				t.Fatal("asset = nil, want a match")
			}
			if asset.Name != tt.wantName || asset.Hash != tt.wantHash || asset.Type != tt.wantType {
				t.Errorf("asset = %+v, want {%s %s %s}", asset, tt.wantType, tt.wantName, tt.wantHash)
			}
		})
	}
}

func TestGlobDiscoverer_NewestWins(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "index.0001.html")
	newer := filepath.Join(dir, "index.0002.html")
	writeFile(t, older, "old")
	writeFile(t, newer, "new")

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}

	asset, err := GlobDiscoverer(DefaultMainAssetPattern, "")(dir)
	if err != nil {
		t.Fatal(err)
	}
	if asset == nil || asset.Hash != "0002" {
		t.Errorf("asset = %+v, want the newest bundle 0002", asset)
	}
}

func TestGlobDiscoverer_InvalidPattern(t *testing.T) {
	if _, err := GlobDiscoverer("index[.html", "")(t.TempDir()); err == nil {
		t.Error("expected error for invalid pattern, got nil")
	}
}
