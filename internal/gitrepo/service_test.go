package gitrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const bodyOnly = `[{"id":"__body","name":"Body","type":"__body","styles":{},"content":[]}]`

const withHeadline = `[{"id":"__body","name":"Body","type":"__body","styles":{},"content":[
	{"id":"t1","name":"Text","type":"text","styles":{"color":"red"},"content":{"innerText":"Hello"}}
]}]`

func TestPageRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Content{PageID: "page-1", Name: "Home", PathName: "", Elements: json.RawMessage(bodyOnly)}
	if err := svc.EnsurePageRepo("page-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsurePageRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "page-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}
	if err := svc.EnsurePageRepo("page-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsurePageRepo() second call error = %v", err)
	}

	updated := initial
	updated.Elements = json.RawMessage(withHeadline)
	version, created, err := svc.CommitVersion("page-1", updated, "Avery", "Add headline")
	if err != nil {
		t.Fatalf("CommitVersion() error = %v", err)
	}
	if !created || version.Hash == "" {
		t.Fatalf("expected a new version, got %+v created=%v", version, created)
	}

	history, err := svc.History("page-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Hash != version.Hash {
		t.Fatalf("unexpected history: %+v", history)
	}

	older, err := svc.GetContentByHash("page-1", history[1].Hash)
	if err != nil {
		t.Fatalf("GetContentByHash() error = %v", err)
	}
	if string(normalizeElements(older.Elements)) != string(normalizeElements(json.RawMessage(bodyOnly))) {
		t.Fatalf("unexpected baseline content: %s", older.Elements)
	}
}

func TestCommitVersionSkipsUnchangedContent(t *testing.T) {
	svc := New(t.TempDir())
	initial := Content{PageID: "page-1", Name: "Home", Elements: json.RawMessage(bodyOnly)}
	if err := svc.EnsurePageRepo("page-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsurePageRepo() error = %v", err)
	}

	reformatted := initial
	reformatted.Elements = json.RawMessage(strings.ReplaceAll(bodyOnly, ",", ", "))
	_, created, err := svc.CommitVersion("page-1", reformatted, "Avery", "Nothing")
	if err != nil {
		t.Fatalf("CommitVersion() error = %v", err)
	}
	if created {
		t.Fatal("expected whitespace-only change to be skipped")
	}

	renamed := initial
	renamed.Name = "Landing"
	if _, created, err := svc.CommitVersion("page-1", renamed, "Avery", "Rename"); err != nil || !created {
		t.Fatalf("CommitVersion(rename) created=%v error=%v", created, err)
	}
}

func TestTagMarksPublishedVersion(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsurePageRepo("page-1", Content{PageID: "page-1", Name: "Home"}, "Avery"); err != nil {
		t.Fatalf("EnsurePageRepo() error = %v", err)
	}
	versions, err := svc.History("page-1", 1)
	if err != nil || len(versions) != 1 {
		t.Fatalf("History() = %v, %v", versions, err)
	}
	head := versions[0]
	if err := svc.Tag("page-1", head.Hash, "publish-1", "Avery"); err != nil {
		t.Fatalf("Tag() error = %v", err)
	}
	if err := svc.Tag("page-1", head.Hash, "publish-1", "Avery"); err != nil {
		t.Fatalf("Tag() repeated error = %v", err)
	}

	history, err := svc.History("page-1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || len(history[0].Tags) != 1 || history[0].Tags[0] != "publish-1" {
		t.Fatalf("unexpected tags in history: %+v", history)
	}
}

func TestMissingRepo(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.History("ghost", 10); !errors.Is(err, ErrRepoNotFound) {
		t.Fatalf("History() error = %v, want ErrRepoNotFound", err)
	}
}

func TestUnknownVersion(t *testing.T) {
	svc := New(t.TempDir())
	initial := Content{PageID: "page-1", Name: "Home", Elements: json.RawMessage(bodyOnly)}
	if err := svc.EnsurePageRepo("page-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsurePageRepo() error = %v", err)
	}
	for _, hash := range []string{"deadbee", strings.Repeat("ab", 20)} {
		if _, err := svc.GetContentByHash("page-1", hash); !errors.Is(err, ErrVersionNotFound) {
			t.Fatalf("GetContentByHash(%s) error = %v, want ErrVersionNotFound", hash, err)
		}
	}
}

func TestConcurrentCommitVersion(t *testing.T) {
	svc := New(t.TempDir())
	initial := Content{PageID: "page-1", Name: "Home", Elements: json.RawMessage(bodyOnly)}
	if err := svc.EnsurePageRepo("page-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsurePageRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := initial
			next.Name = fmt.Sprintf("name-%02d", idx)
			if _, _, err := svc.CommitVersion("page-1", next, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitVersion() concurrent error = %v", err)
		}
	}

	history, err := svc.History("page-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers+1 {
		t.Fatalf("expected %d commits in history, got %d", writers+1, len(history))
	}

	head, err := svc.GetContentByHash("page-1", history[0].Hash)
	if err != nil {
		t.Fatalf("GetContentByHash() error = %v", err)
	}
	if !strings.HasPrefix(head.Name, "name-") {
		t.Fatalf("unexpected head content after concurrent commits: %+v", head)
	}
}
