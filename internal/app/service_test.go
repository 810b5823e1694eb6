package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/editor"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/events"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/export"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/store"
)

func note(id string) *editor.Element {
	return editor.NewLeaf(id, editor.KindText, "Note", editor.Content{InnerText: "note " + id})
}

func mustOpen(t *testing.T, svc *Service, actor Actor, pageID string, opts OpenOptions) SessionView {
	t.Helper()
	view, err := svc.OpenSession(context.Background(), actor, pageID, opts)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	return view
}

func mustDispatch(t *testing.T, svc *Service, actor Actor, pageID string, action editor.Action) SessionView {
	t.Helper()
	view, err := svc.Dispatch(context.Background(), actor, pageID, action)
	if err != nil {
		t.Fatalf("Dispatch(%s) error = %v", action.Type(), err)
	}
	return view
}

func hasElement(view SessionView, id string) bool {
	_, ok := editor.Find(view.State.Document, id)
	return ok
}

func TestEditSaveFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	if view.Source != sourceSaved || view.Dirty || view.ReadOnly {
		t.Fatalf("unexpected open view: %+v", view)
	}
	if !hasElement(view, "title") {
		t.Fatal("saved tree not loaded")
	}

	view = mustDispatch(t, f.svc, owner, "p1", editor.AddElement{ContainerID: "hero", Element: note("n1")})
	if !view.Dirty || !hasElement(view, "n1") {
		t.Fatalf("expected dirty view with new element: %+v", view.History)
	}
	if _, ok := f.drafts.get("p1"); !ok {
		t.Fatal("expected autosaved draft")
	}

	result, err := f.svc.Save(ctx, owner, "p1")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if result.Session.Dirty {
		t.Fatal("session still dirty after save")
	}
	if result.Version == nil || result.Version.Hash == "" {
		t.Fatalf("expected a recorded version, got %+v", result.Version)
	}
	if !strings.Contains(f.pages.content("p1"), `"n1"`) {
		t.Fatalf("saved content missing new element: %s", f.pages.content("p1"))
	}
	if got := f.pages.text["p1"]; got != "Welcome note n1" {
		t.Fatalf("plain text = %q", got)
	}
	if _, ok := f.drafts.get("p1"); ok {
		t.Fatal("draft not discarded after save")
	}
	if types := f.events.types(); len(types) != 1 || types[0] != events.PageSaved {
		t.Fatalf("events = %v", types)
	}
	if len(f.index.indexed) != 1 || f.index.indexed[0].Text != "Welcome note n1" {
		t.Fatalf("indexed = %+v", f.index.indexed)
	}
}

func TestUndoRedoAndDraftTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	mustDispatch(t, f.svc, owner, "p1", editor.DeleteElement{ElementID: "title"})

	view, err := f.svc.Undo(ctx, owner, "p1")
	if err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if !hasElement(view, "title") || view.Dirty {
		t.Fatalf("undo did not restore the saved tree: dirty=%v", view.Dirty)
	}
	if _, ok := f.drafts.get("p1"); ok {
		t.Fatal("draft kept for a clean session")
	}

	view, err = f.svc.Redo(ctx, owner, "p1")
	if err != nil {
		t.Fatalf("Redo() error = %v", err)
	}
	if hasElement(view, "title") || !view.Dirty || !view.History.CanUndo {
		t.Fatalf("redo did not reapply the delete: %+v", view.History)
	}
}

func TestSessionIsSharedPerPage(t *testing.T) {
	f := newFixture(t)
	mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	mustDispatch(t, f.svc, owner, "p1", editor.AddElement{ContainerID: "hero", Element: note("n1")})

	again := mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	if !hasElement(again, "n1") {
		t.Fatal("second open did not join the existing session")
	}
}

func TestOpenSessionFromDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	mustDispatch(t, f.svc, owner, "p1", editor.AddElement{ContainerID: "hero", Element: note("n1")})
	if err := f.svc.CloseSession(owner, "p1"); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}

	view := mustOpen(t, f.svc, owner, "p1", OpenOptions{FromDraft: true})
	if view.Source != sourceDraft || !view.Dirty || !hasElement(view, "n1") {
		t.Fatalf("draft not resumed: source=%s dirty=%v", view.Source, view.Dirty)
	}

	if err := f.svc.CloseSession(owner, "p1"); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	view = mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	if view.Source != sourceSaved || hasElement(view, "n1") {
		t.Fatal("plain open should ignore the draft")
	}
	if _, err := f.svc.GetSession(owner, "ghost"); !errors.Is(err, errSessionNotFound) {
		t.Fatalf("GetSession(ghost) error = %v", err)
	}
	if err := f.svc.CloseSession(owner, "ghost"); !errors.Is(err, errSessionNotFound) {
		t.Fatalf("CloseSession(ghost) error = %v", err)
	}
	if _, err := f.svc.OpenSession(ctx, owner, "ghost", OpenOptions{}); !errors.Is(err, store.ErrPageNotFound) {
		t.Fatalf("OpenSession(ghost) error = %v", err)
	}
}

func TestGuestSessionIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := mustOpen(t, f.svc, guest, "p1", OpenOptions{})
	if !view.ReadOnly || !view.State.Live {
		t.Fatalf("guest view should be live and read-only: %+v", view)
	}

	_, err := f.svc.Dispatch(ctx, guest, "p1", editor.AddElement{ContainerID: "hero", Element: note("n1")})
	if !errors.Is(err, errForbidden) {
		t.Fatalf("guest mutation error = %v, want forbidden", err)
	}
	if _, err := f.svc.Undo(ctx, guest, "p1"); !errors.Is(err, errForbidden) {
		t.Fatalf("guest undo error = %v, want forbidden", err)
	}
	if _, err := f.svc.Save(ctx, guest, "p1"); !errors.Is(err, errForbidden) {
		t.Fatalf("guest save error = %v, want forbidden", err)
	}

	if _, err := f.svc.Dispatch(ctx, guest, "p1", editor.ChangeDevice{Device: editor.DeviceMobile}); !errors.Is(err, errForbidden) {
		t.Fatalf("guest view change error = %v, want forbidden", err)
	}
	if err := f.svc.CloseSession(guest, "p1"); !errors.Is(err, errForbidden) {
		t.Fatalf("guest close error = %v, want forbidden", err)
	}
	if _, err := f.svc.GetSession(owner, "p1"); err != nil {
		t.Fatalf("session gone after refused close: %v", err)
	}
}

func TestGuestCannotChangeSharedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	mustDispatch(t, f.svc, owner, "p1", editor.DeleteElement{ElementID: "title"})
	view, err := f.svc.Undo(ctx, owner, "p1")
	if err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if !view.History.CanRedo {
		t.Fatal("expected a redo step after undo")
	}

	on := true
	if _, err := f.svc.Dispatch(ctx, guest, "p1", editor.ToggleLiveMode{Value: &on}); !errors.Is(err, errForbidden) {
		t.Fatalf("guest live toggle error = %v, want forbidden", err)
	}
	mustOpen(t, f.svc, guest, "p1", OpenOptions{Live: true})

	view, err = f.svc.GetSession(owner, "p1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if !view.History.CanRedo || view.State.Live || view.ReadOnly {
		t.Fatalf("owner session changed by guest: live=%v history=%+v", view.State.Live, view.History)
	}
	view, err = f.svc.Redo(ctx, owner, "p1")
	if err != nil || hasElement(view, "title") {
		t.Fatalf("redo after guest visit: err=%v", err)
	}
}

func TestGuestOpeningFirstLeavesSessionEditable(t *testing.T) {
	f := newFixture(t)
	guestView := mustOpen(t, f.svc, guest, "p1", OpenOptions{})
	if !guestView.State.Live || !guestView.ReadOnly {
		t.Fatalf("guest view should be live and read-only: %+v", guestView)
	}

	view := mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	if view.State.Live || view.ReadOnly {
		t.Fatalf("owner joined a live session: live=%v readOnly=%v", view.State.Live, view.ReadOnly)
	}
	mustDispatch(t, f.svc, owner, "p1", editor.ChangeClickedElement{ElementID: "title"})
}

func TestDispatchRejectsPageSwitch(t *testing.T) {
	f := newFixture(t)
	mustOpen(t, f.svc, owner, "p1", OpenOptions{})

	_, err := f.svc.Dispatch(context.Background(), owner, "p1", editor.SetPageID{PageID: "p2"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_ACTION" {
		t.Fatalf("error = %v, want INVALID_ACTION", err)
	}
	mustDispatch(t, f.svc, owner, "p1", editor.SetPageID{PageID: "p1"})
}

func TestCorruptContentFailsClosed(t *testing.T) {
	f := newFixture(t, store.Page{ID: "p1", FunnelID: "f1", Name: "Broken", Content: `{"not":"a tree"}`})

	view := mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	if view.Warning == "" || !view.Dirty {
		t.Fatalf("expected warning and dirty session: %+v", view)
	}
	if editor.Count(view.State.Document) != 1 {
		t.Fatalf("expected root-only document, got %d elements", editor.Count(view.State.Document))
	}

	_, err := f.svc.Publish(context.Background(), owner, "p1", export.FormatHTML)
	if !errors.Is(err, editor.ErrCorruptContent) {
		t.Fatalf("Publish() error = %v, want ErrCorruptContent", err)
	}
}

func TestRestoreOlderVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	if _, err := f.svc.Save(ctx, owner, "p1"); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	mustDispatch(t, f.svc, owner, "p1", editor.DeleteElement{ElementID: "title"})
	second, err := f.svc.Save(ctx, owner, "p1")
	if err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if !second.NewVersion {
		t.Fatal("changed content should produce a new version")
	}

	versions, err := f.svc.Versions("p1", 10)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(versions) != 2 || versions[0].Hash != second.Version.Hash {
		t.Fatalf("unexpected versions: %+v", versions)
	}

	view, err := f.svc.Restore(ctx, owner, "p1", versions[1].Hash)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !hasElement(view, "title") || !view.Dirty {
		t.Fatalf("restore did not load the older tree: dirty=%v", view.Dirty)
	}
	if view.History.Length != 1 || view.History.CanUndo {
		t.Fatalf("restore should reset history: %+v", view.History)
	}

	if _, err := f.svc.Restore(ctx, owner, "p1", "deadbee"); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestVersionsWithoutHistory(t *testing.T) {
	f := newFixture(t)
	versions, err := f.svc.Versions("p1", 10)
	if err != nil || len(versions) != 0 {
		t.Fatalf("Versions() = %v, %v", versions, err)
	}
}

func TestRenameReloadsOpenSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	mustDispatch(t, f.svc, owner, "p1", editor.DeleteElement{ElementID: "title"})

	page, err := f.svc.Rename(ctx, owner, "p1", RenamePageInput{Name: "Pricing", PathName: "/pricing plans/"})
	if err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if page.Name != "Pricing" || page.PathName != "pricing-plans" {
		t.Fatalf("unexpected page: %+v", page)
	}

	view, err := f.svc.GetSession(owner, "p1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if view.Name != "Pricing" || view.Dirty || !hasElement(view, "title") {
		t.Fatalf("session not reloaded after rename: %+v", view)
	}
	draft, ok := f.drafts.get("p1")
	if !ok || strings.Contains(draft.Content, `"title"`) {
		t.Fatal("unsaved changes should be parked as a draft")
	}
	if types := f.events.types(); len(types) != 1 || types[0] != events.PageRenamed {
		t.Fatalf("events = %v", types)
	}
}

func TestHandlePageEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mustOpen(t, f.svc, owner, "p1", OpenOptions{})

	f.pages.setContent("p1", heroWithoutTitle)
	if err := f.svc.HandlePageEvent(ctx, events.PageChanged{Type: events.PageSaved, PageID: "p1"}); err != nil {
		t.Fatalf("HandlePageEvent() error = %v", err)
	}
	view, _ := f.svc.GetSession(owner, "p1")
	if hasElement(view, "title") {
		t.Fatal("clean session should follow a remote save")
	}

	mustDispatch(t, f.svc, owner, "p1", editor.AddElement{ContainerID: "hero", Element: note("n1")})
	f.pages.setContent("p1", heroContent)
	if err := f.svc.HandlePageEvent(ctx, events.PageChanged{Type: events.PageSaved, PageID: "p1"}); err != nil {
		t.Fatalf("HandlePageEvent() error = %v", err)
	}
	view, _ = f.svc.GetSession(owner, "p1")
	if !hasElement(view, "n1") || hasElement(view, "title") {
		t.Fatal("dirty session should keep local changes")
	}

	if err := f.svc.HandlePageEvent(ctx, events.PageChanged{Type: events.PageRenamed, PageID: "unopened"}); err != nil {
		t.Fatalf("event for a page without session: %v", err)
	}

	if err := f.drafts.Discard(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.HandlePageEvent(ctx, events.PageChanged{Type: events.PageDeleted, PageID: "p1"}); err != nil {
		t.Fatalf("HandlePageEvent(deleted) error = %v", err)
	}
	if _, err := f.svc.GetSession(owner, "p1"); !errors.Is(err, errSessionNotFound) {
		t.Fatalf("session kept after remote delete: %v", err)
	}
	if _, ok := f.drafts.get("p1"); ok {
		t.Fatal("deleted page parked a draft")
	}
}

func TestDeletePage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	mustDispatch(t, f.svc, owner, "p1", editor.AddElement{ContainerID: "hero", Element: note("n1")})
	if _, ok := f.drafts.get("p1"); !ok {
		t.Fatal("expected autosaved draft")
	}

	if err := f.svc.DeletePage(ctx, guest, "p1"); !errors.Is(err, errForbidden) {
		t.Fatalf("guest delete error = %v, want forbidden", err)
	}
	if err := f.svc.DeletePage(ctx, owner, "p1"); err != nil {
		t.Fatalf("DeletePage() error = %v", err)
	}

	if _, err := f.pages.GetPage(ctx, "p1"); !errors.Is(err, store.ErrPageNotFound) {
		t.Fatalf("page still stored: %v", err)
	}
	if _, err := f.svc.GetSession(owner, "p1"); !errors.Is(err, errSessionNotFound) {
		t.Fatalf("session kept after delete: %v", err)
	}
	if _, ok := f.drafts.get("p1"); ok {
		t.Fatal("draft kept after delete")
	}
	if len(f.index.deleted) != 1 || f.index.deleted[0] != "p1" {
		t.Fatalf("deleted from index = %v", f.index.deleted)
	}
	if types := f.events.types(); len(types) != 1 || types[0] != events.PageDeleted {
		t.Fatalf("events = %v", types)
	}

	if err := f.svc.DeletePage(ctx, owner, "p1"); !errors.Is(err, store.ErrPageNotFound) {
		t.Fatalf("second delete error = %v", err)
	}
	if _, err := f.svc.OpenSession(ctx, owner, "p1", OpenOptions{}); !errors.Is(err, store.ErrPageNotFound) {
		t.Fatalf("OpenSession(deleted) error = %v", err)
	}
}

func TestPublishTagsSavedVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	if _, err := f.svc.Save(ctx, owner, "p1"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	result, err := f.svc.Publish(ctx, owner, "p1", export.FormatHTML)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !strings.Contains(string(result.Data), "Welcome") || result.Filename != "Landing.html" {
		t.Fatalf("unexpected artifact %s", result.Filename)
	}

	versions, err := f.svc.Versions("p1", 1)
	if err != nil || len(versions) != 1 {
		t.Fatalf("Versions() = %v, %v", versions, err)
	}
	if len(versions[0].Tags) != 1 || versions[0].Tags[0] != "publish-html-20260301T120000Z" {
		t.Fatalf("tags = %v", versions[0].Tags)
	}

	if _, err := f.svc.Publish(ctx, guest, "p1", export.FormatHTML); !errors.Is(err, errForbidden) {
		t.Fatalf("guest publish error = %v", err)
	}
}

func TestCreateAndListPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.svc.CreatePage(ctx, owner, "f1", CreatePageInput{Name: " Checkout ", PathName: "checkout"})
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}
	if page.ID != "page_id-1" || page.Name != "Checkout" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if _, err := f.svc.CreatePage(ctx, owner, "f1", CreatePageInput{Name: "Again", PathName: "checkout"}); !errors.Is(err, store.ErrPathTaken) {
		t.Fatalf("duplicate path error = %v", err)
	}

	pages, err := f.svc.ListPages(ctx, "f1")
	if err != nil || len(pages) != 2 {
		t.Fatalf("ListPages() = %v, %v", pages, err)
	}

	records, err := f.svc.ListPageRecords(ctx)
	if err != nil || len(records) != 2 {
		t.Fatalf("ListPageRecords() = %v, %v", records, err)
	}
}

func TestShutdownParksDirtySessions(t *testing.T) {
	f := newFixture(t)
	mustOpen(t, f.svc, owner, "p1", OpenOptions{})
	mustDispatch(t, f.svc, owner, "p1", editor.AddElement{ContainerID: "hero", Element: note("n1")})
	if err := f.drafts.Discard(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}

	f.svc.Shutdown(context.Background())
	draft, ok := f.drafts.get("p1")
	if !ok || draft.UpdatedBy != "Avery" {
		t.Fatalf("expected parked draft by Avery, got %+v", draft)
	}
}
