package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/scribe/internal/testutil"
)

func TestWorkspace_WriteReadList(t *testing.T) {
	ws, err := Open(filepath.Join(t.TempDir(), "notes"))
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.Write(FileName("abc"), []byte("hello")); err != nil {
		t.Fatal(err)
	}
	data, err := ws.Read("abc.md")
	if err != nil || string(data) != "hello" {
		t.Fatalf("read = %q, %v", data, err)
	}
	entries, err := ws.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "abc.md" || entries[0].Checksum != Sum([]byte("hello")) {
		t.Errorf("entries = %+v", entries)
	}
	leftovers, _ := filepath.Glob(filepath.Join(ws.Root(), ".scribe-tmp-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
	if err := ws.Remove("abc.md"); err != nil {
		t.Fatal(err)
	}
	if err := ws.Remove("abc.md"); err != nil {
		t.Errorf("second remove: %v", err)
	}
}

func TestWorkspace_RejectsEscapes(t *testing.T) {
	ws, _ := Open(t.TempDir())
	for _, name := range []string{"../x.md", "/etc/passwd", "", "."} {
		if _, err := ws.Read(name); err == nil {
			t.Errorf("Read(%q) should fail", name)
		}
		if err := ws.Write(name, nil); err == nil {
			t.Errorf("Write(%q) should fail", name)
		}
	}
}

func TestSum(t *testing.T) {
	if got := Sum([]byte("")); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("Sum(empty) = %s", got)
	}
}

func TestWatch_ReportsExternalEditsOnly(t *testing.T) {
	ws, _ := Open(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ws.Watch(ctx, testutil.QuietLogger(), func(name string, data []byte) {
			mu.Lock()
			got = append(got, name+"="+string(data))
			mu.Unlock()
		})
	}()
	time.Sleep(100 * time.Millisecond)

	// Our own write is an echo and must not be reported.
	if err := ws.Write("n.md", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(ws.Root(), "n.md"), []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(ws.Root(), "ignored.txt"), []byte("x"), 0o644)

	testutil.Eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1] == "n.md=v2"
	}, "external edit not reported")

	cancel()
	<-done
	mu.Lock()
	defer mu.Unlock()
	for _, g := range got {
		if g == "n.md=v1" || g == "ignored.txt=x" {
			t.Errorf("unexpected event %q", g)
		}
	}
}

func TestWatch_RenameSaveReported(t *testing.T) {
	ws, _ := Open(t.TempDir())
	_ = ws.Write("n.md", []byte("v1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan string, 8)
	go func() {
		_ = ws.Watch(ctx, testutil.QuietLogger(), func(_ string, data []byte) { events <- string(data) })
	}()
	time.Sleep(100 * time.Millisecond)

	tmp := filepath.Join(ws.Root(), "n.md.swp")
	_ = os.WriteFile(tmp, []byte("v3"), 0o644)
	if err := os.Rename(tmp, filepath.Join(ws.Root(), "n.md")); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-events:
		if v != "v3" {
			t.Errorf("content = %q", v)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("rename save not reported")
	}
}
