package reload

import (
	"encoding/json"
	"io/fs"
	"strings"
	"testing"

	"github.com/jpalmerr/bundleserve/build"
)

func TestAssets_ReloadClient(t *testing.T) {
	content, err := fs.ReadFile(Assets, "assets/reload.js")
	if err != nil {
		t.Fatalf("reload.js not embedded: %v", err)
	}
	script := string(content)

	for _, want := range []string{"{{.EventsURL}}", "EventSource", "window.location.reload()"} {
		if !strings.Contains(script, want) {
			t.Errorf("reload.js missing %q", want)
		}
	}
}

// A client connecting while a build runs receives a pending snapshot whose
// build id matches the later succeeded event. The client must not adopt
// that id, or the succeeded event would not reload the page.
func TestAssets_PendingSnapshotDoesNotSuppressReload(t *testing.T) {
	tr := build.NewTracker()
	id := tr.Begin()

	snapshot, err := json.Marshal(tr.Status())
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(snapshot, &fields); err != nil {
		t.Fatal(err)
	}
	if fields["pending"] != true || fields["build_id"] != id {
		t.Fatalf("snapshot = %s, want pending build %s", snapshot, id)
	}

	content, err := fs.ReadFile(Assets, "assets/reload.js")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "if (!data.pending) {") {
		t.Error("reload.js records the build id of a pending snapshot")
	}
}
