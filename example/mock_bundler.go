package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/spf13/afero"

	"github.com/jpalmerr/bundleserve/build"
)

const pageTemplate = `<!doctype html>
<html>
  <head>
    <title>bundleserve demo</title>
    <script src="/__bundleserve/reload.js"></script>
  </head>
  <body>
    <h1>Build %d</h1>
    <script src="/main.%s.js"></script>
  </body>
</html>
`

// runMockBundler simulates a bundler writing to fsys. Every 5-10 seconds it
// starts a build, and roughly one build in four fails.
func runMockBundler(ctx context.Context, fsys afero.Fs, tracker *build.Tracker) {
	for n := 1; ; n++ {
		id := tracker.Begin()

		// simulate bundling time
		select {
		case <-ctx.Done():
			tracker.Complete(build.Result{Err: errors.New("bundler stopped")})
			return
		case <-time.After(time.Duration(200+rand.Intn(800)) * time.Millisecond):
		}

		res := emit(fsys, n)
		if res.Err == nil && rand.Intn(4) == 0 {
			res = build.Result{Err: fmt.Errorf("main.js: unexpected token at line %d", 1+rand.Intn(40))}
		}
		tracker.Complete(res)
		slog.Info("mock build finished", "build", n, "build_id", id, "error", res.Err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(5+rand.Intn(6)) * time.Second):
		}
	}
}

// emit writes a content-hashed HTML page and script for build n.
func emit(fsys afero.Fs, n int) build.Result {
	script := fmt.Sprintf("console.log(%q);\n", fmt.Sprintf("hello from build %d", n))
	jsHash := contentHash(script)
	page := fmt.Sprintf(pageTemplate, n, jsHash)
	htmlHash := contentHash(page)

	if err := afero.WriteFile(fsys, "/main."+jsHash+".js", []byte(script), 0o644); err != nil {
		return build.Result{Err: err}
	}
	if err := afero.WriteFile(fsys, "/index."+htmlHash+".html", []byte(page), 0o644); err != nil {
		return build.Result{Err: err}
	}
	return build.Result{MainAsset: &build.Asset{Type: "html", Name: "index.html", Hash: htmlHash}}
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}
