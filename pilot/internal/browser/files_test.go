package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hazyhaar/tabpilot/host"
)

func TestDataURL_RoundTrip(t *testing.T) {
	in := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}
	u := EncodeDataURL("image/png", in)

	mime, out, err := DecodeDataURL(u)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("mime: got %q", mime)
	}
	if string(out) != string(in) {
		t.Fatalf("payload: got %v, want %v", out, in)
	}
}

func TestDecodeDataURL_Rejects(t *testing.T) {
	for _, u := range []string{"https://x.test/a.png", "data:image/png;base64", "data:image/png;base64,!!!"} {
		if _, _, err := DecodeDataURL(u); err == nil {
			t.Errorf("DecodeDataURL(%q): expected error", u)
		}
	}
}

func TestDecodeDataURL_Plain(t *testing.T) {
	_, out, err := DecodeDataURL("data:text/plain,hello")
	if err != nil || string(out) != "hello" {
		t.Fatalf("got %q (%v)", out, err)
	}
}

func TestSafeJoin(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"qa-feedback.png", "qa..feedback.png", "...png"} {
		p, err := safeJoin(dir, name)
		if err != nil {
			t.Fatalf("safeJoin(%q): %v", name, err)
		}
		if p != filepath.Join(dir, name) {
			t.Fatalf("path: got %q", p)
		}
	}
	for _, bad := range []string{"", ".", "..", "../x.png", "a/../../x.png", `a\\x.png`, "sub/x.png"} {
		if _, err := safeJoin(dir, bad); !errors.Is(err, ErrPathTraversal) {
			t.Errorf("safeJoin(%q): got %v, want ErrPathTraversal", bad, err)
		}
	}
}

func TestWriteUnique(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "shot.png")
	for i, want := range []string{p, filepath.Join(dir, "shot (1).png"), filepath.Join(dir, "shot (2).png")} {
		got, err := writeUnique(p, []byte{byte(i)})
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("write %d: got %q, want %q", i, got, want)
		}
	}
	if data, _ := os.ReadFile(p); len(data) != 1 || data[0] != 0 {
		t.Fatalf("first file overwritten: %v", data)
	}
}

func TestWriteUnique_Concurrent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "shot.png")
	const n = 8
	paths := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := writeUnique(p, []byte("x"))
			if err != nil {
				t.Errorf("writeUnique: %v", err)
				return
			}
			paths <- got
		}()
	}
	wg.Wait()
	close(paths)
	seen := map[string]bool{}
	for got := range paths {
		if seen[got] {
			t.Fatalf("two writers got %q", got)
		}
		seen[got] = true
	}
	if len(seen) != n {
		t.Fatalf("files: got %d, want %d", len(seen), n)
	}
}

func TestStaticPrompter(t *testing.T) {
	p := StaticPrompter{Allow: []host.Permission{host.PermStorage}}
	ctx := context.Background()

	if ok, _ := p.ConfirmPermissions(ctx, []host.Permission{host.PermStorage}); !ok {
		t.Fatal("allowed permission denied")
	}
	if ok, _ := p.ConfirmPermissions(ctx, []host.Permission{host.PermStorage, host.PermDownloads}); ok {
		t.Fatal("unlisted permission granted")
	}
	if name, _ := p.SaveAs(ctx, "a.png"); name != "a.png" {
		t.Fatalf("SaveAs: got %q", name)
	}
}
