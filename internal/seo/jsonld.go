package seo

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// JSON marshals v to a compact JSON string. It returns an empty string on error.
func JSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// WebSite returns a WebSite schema with an optional SearchAction.
func WebSite(name, url, searchActionURL string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if searchActionURL != "" {
		m["potentialAction"] = map[string]any{
			"@type":       "SearchAction",
			"target":      searchActionURL + "{search_term_string}",
			"query-input": "required name=search_term_string",
		}
	}
	return m
}

// BreadcrumbItem maps name and absolute item URL.
type BreadcrumbItem struct {
	Name string
	Item string
}

// BreadcrumbList builds schema.org BreadcrumbList.
func BreadcrumbList(items []BreadcrumbItem) map[string]any {
	el := make([]map[string]any, 0, len(items))
	for i, it := range items {
		el = append(el, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"name":     it.Name,
			"item":     it.Item,
		})
	}
	return map[string]any{
		"@context":        "https://schema.org",
		"@type":           "BreadcrumbList",
		"itemListElement": el,
	}
}

// ProductInfo is the subset of a catalog product the Product schema needs.
type ProductInfo struct {
	SKU         string
	Name        string
	Description string
	Author      string
	URL         string
	Images      []string
	Price       decimal.Decimal
	Currency    string
}

// Product returns a Product schema with a single in-stock Offer.
func Product(p ProductInfo) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Product",
		"name":     p.Name,
		"sku":      p.SKU,
	}
	if p.Description != "" {
		m["description"] = p.Description
	}
	if p.URL != "" {
		m["url"] = p.URL
	}
	if len(p.Images) > 0 {
		m["image"] = p.Images
	}
	if p.Author != "" {
		m["brand"] = map[string]any{"@type": "Brand", "name": p.Author}
	}
	currency := p.Currency
	if currency == "" {
		currency = "RUB"
	}
	m["offers"] = map[string]any{
		"@type":         "Offer",
		"price":         p.Price.StringFixed(2),
		"priceCurrency": currency,
		"availability":  "https://schema.org/InStock",
	}
	return m
}
