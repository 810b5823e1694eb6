package editor

import "fmt"

// Device is the responsive profile the page is previewed with. It is a
// rendering hint only.
type Device string

const (
	DeviceDesktop Device = "Desktop"
	DeviceTablet  Device = "Tablet"
	DeviceMobile  Device = "Mobile"
)

func ParseDevice(value string) (Device, error) {
	switch Device(value) {
	case DeviceDesktop, DeviceTablet, DeviceMobile:
		return Device(value), nil
	default:
		return "", fmt.Errorf("unknown device %q", value)
	}
}

// EditorState is one point-in-time snapshot of an editing session.
type EditorState struct {
	Document   Document `json:"elements"`
	SelectedID string   `json:"selectedElementId"`
	Device     Device   `json:"device"`
	Preview    bool     `json:"previewMode"`
	Live       bool     `json:"liveMode"`
	PageID     string   `json:"pageId"`
}

// NewState returns the initial state for a page.
func NewState(pageID string, doc Document) EditorState {
	if doc.Root == nil {
		doc = NewDocument()
	}
	return EditorState{
		Document: doc,
		Device:   DeviceDesktop,
		PageID:   pageID,
	}
}

// SelectedElement resolves the selection against the current document.
// The selection is a weak reference: an id that no longer exists resolves
// to nothing instead of stale data.
func (s EditorState) SelectedElement() (*Element, bool) {
	if s.SelectedID == "" {
		return nil, false
	}
	return Find(s.Document, s.SelectedID)
}
