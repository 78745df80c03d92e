package fsops

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestListDirSortsDirectoriesFirstThenCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	names := []string{"Banana.txt", "apple.txt", "zeta", "Alpha"}
	for _, n := range names {
		if n == "zeta" || n == "Alpha" {
			os.Mkdir(filepath.Join(dir, n), 0o755)
		} else {
			os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644)
		}
	}

	entries, ferr := ListDir(dir)
	if ferr != nil {
		t.Fatalf("ListDir: %v", ferr)
	}

	var sawFile bool
	for _, e := range entries {
		if e.IsDir && sawFile {
			t.Fatalf("directory %q appeared after a file in %+v", e.Name, entries)
		}
		if !e.IsDir {
			sawFile = true
		}
	}

	var dirNames, fileNames []string
	for _, e := range entries {
		if e.IsDir {
			dirNames = append(dirNames, e.Name)
		} else {
			fileNames = append(fileNames, e.Name)
		}
	}
	if !sort.SliceIsSorted(dirNames, func(i, j int) bool {
		return lowerLess(dirNames[i], dirNames[j])
	}) {
		t.Fatalf("dirs not sorted: %v", dirNames)
	}
	if !sort.SliceIsSorted(fileNames, func(i, j int) bool {
		return lowerLess(fileNames[i], fileNames[j])
	}) {
		t.Fatalf("files not sorted: %v", fileNames)
	}
}

func lowerLess(a, b string) bool {
	return toLower(a) < toLower(b)
}

func toLower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + 32
		}
	}
	return string(out)
}

func TestReadFileTextVsBinary(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, "a.txt")
	os.WriteFile(textPath, []byte("hello world"), 0o644)

	res, ferr := ReadFile(textPath, 0, 0)
	if ferr != nil {
		t.Fatalf("ReadFile: %v", ferr)
	}
	if res.Encoding != "utf8" || res.Content != "hello world" {
		t.Fatalf("got %+v", res)
	}

	binPath := filepath.Join(dir, "b.bin")
	os.WriteFile(binPath, []byte{0x00, 0x01, 0x02}, 0o644)
	res2, ferr := ReadFile(binPath, 0, 0)
	if ferr != nil {
		t.Fatalf("ReadFile: %v", ferr)
	}
	if res2.Encoding != "base64" {
		t.Fatalf("expected base64 encoding, got %+v", res2)
	}
}

func TestReadFileNotFound(t *testing.T) {
	_, ferr := ReadFile(filepath.Join(t.TempDir(), "nope"), 0, 0)
	if ferr == nil || ferr.Code != "not_found" {
		t.Fatalf("expected not_found, got %+v", ferr)
	}
}

func TestStatDoesNotFollowSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	os.WriteFile(target, []byte("x"), 0o644)
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	res, ferr := Stat(link)
	if ferr != nil {
		t.Fatalf("Stat: %v", ferr)
	}
	if !res.IsSymlink {
		t.Fatalf("expected IsSymlink=true, got %+v", res)
	}
}

func TestWalkNotTruncatedBelowCap(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		os.WriteFile(filepath.Join(dir, "f"+string(rune('a'+i))), []byte("x"), 0o644)
	}
	result, ferr := Walk(dir, 0, "")
	if ferr != nil {
		t.Fatalf("Walk: %v", ferr)
	}
	if result.Truncated {
		t.Fatal("should not be truncated with only 5 entries")
	}
	if len(result.Entries) != 5 {
		t.Fatalf("entries = %d, want 5", len(result.Entries))
	}
}

func TestWalkGlobFiltersByBaseName(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.go"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644)

	result, ferr := Walk(dir, 0, "*.go")
	if ferr != nil {
		t.Fatalf("Walk: %v", ferr)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("entries = %+v, want 1 matching *.go", result.Entries)
	}
}

func TestWalkSkipsDotDirectories(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".git")
	os.Mkdir(hidden, 0o755)
	os.WriteFile(filepath.Join(hidden, "config"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "visible.txt"), []byte("x"), 0o644)

	result, ferr := Walk(dir, 0, "")
	if ferr != nil {
		t.Fatalf("Walk: %v", ferr)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("entries = %+v, want only visible.txt", result.Entries)
	}
}
