// Package nav builds the header navigation and breadcrumbs.
package nav

import "strings"

// Item is a top-level navigation entry.
type Item struct {
	Path     string   // e.g. "/catalog"
	LabelKey string   // i18n key, e.g. "nav.catalog"
	Also     []string // other paths that belong to this section
}

// RenderedItem is the template view of an Item.
type RenderedItem struct {
	Href     string
	LabelKey string
	Active   bool
	// Badge marks the entry that shows the cart count.
	Badge bool
}

// Crumb is a breadcrumb entry. If LabelKey is empty, Label is shown verbatim.
type Crumb struct {
	Href     string
	LabelKey string
	Label    string
	Active   bool
}

// Main is the header navigation.
var Main = []Item{
	{Path: "/", LabelKey: "nav.home"},
	{Path: "/catalog", LabelKey: "nav.catalog", Also: []string{"/product"}},
	{Path: "/cart", LabelKey: "nav.cart"},
}

// Build renders Main with the active entry for currentPath.
func Build(currentPath string) []RenderedItem {
	if currentPath == "" {
		currentPath = "/"
	}
	items := make([]RenderedItem, 0, len(Main))
	for _, it := range Main {
		items = append(items, RenderedItem{
			Href:     it.Path,
			LabelKey: it.LabelKey,
			Active:   it.matches(currentPath),
			Badge:    it.Path == "/cart",
		})
	}
	return items
}

func (it Item) matches(currentPath string) bool {
	if isActive(it.Path, currentPath) {
		return true
	}
	for _, p := range it.Also {
		if isActive(p, currentPath) {
			return true
		}
	}
	return false
}

func isActive(itemPath, currentPath string) bool {
	if itemPath == "/" {
		return currentPath == "/"
	}
	return currentPath == itemPath || strings.HasPrefix(currentPath, itemPath+"/")
}

// Breadcrumbs returns Home, the section owning currentPath and, when leaf is
// non-empty, a final crumb labelled leaf.
func Breadcrumbs(currentPath, leaf string) []Crumb {
	if currentPath == "" {
		currentPath = "/"
	}
	crumbs := []Crumb{{Href: "/", LabelKey: "nav.home", Active: currentPath == "/" && leaf == ""}}
	if currentPath == "/" {
		return crumbs
	}
	for _, it := range Main[1:] {
		if it.matches(currentPath) {
			crumbs = append(crumbs, Crumb{Href: it.Path, LabelKey: it.LabelKey, Active: leaf == "" && currentPath == it.Path})
			break
		}
	}
	if leaf != "" {
		crumbs = append(crumbs, Crumb{Href: currentPath, Label: leaf, Active: true})
	}
	return crumbs
}
