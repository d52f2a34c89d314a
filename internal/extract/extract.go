// Package extract locates the canonical product image on a listing page.
package extract

import (
	"fmt"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// productImageSelector matches the listing page's product image: a wrapper
// element followed by its image descendant. This is the only layout the
// extractor knows about.
const productImageSelector = "div.img-tag-wrapper img"

// ImageReference points at the product image. URL is always absolute.
type ImageReference struct {
	URL string
}

// Extract parses a listing page and returns a reference to its product
// image. A page with no matching image element is a miss, not an error:
// Extract returns (nil, nil). The image src is resolved against pageURL so
// the reference is directly fetchable.
func Extract(r io.Reader, pageURL string) (*ImageReference, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	img := doc.Find(productImageSelector).First()
	if img.Length() == 0 {
		return nil, nil
	}

	src, ok := img.Attr("src")
	if !ok || src == "" {
		// Wrapper present but the image never loaded a source.
		return nil, nil
	}

	abs, err := resolve(pageURL, src)
	if err != nil {
		return nil, err
	}

	return &ImageReference{URL: abs}, nil
}

func resolve(pageURL, src string) (string, error) {
	ref, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("invalid image source %q: %w", src, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if pageURL == "" {
		return "", fmt.Errorf("relative image source %q with no page URL to resolve against", src)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}
	abs := base.ResolveReference(ref)
	if !abs.IsAbs() {
		return "", fmt.Errorf("image source %q did not resolve to an absolute URL", src)
	}
	return abs.String(), nil
}
