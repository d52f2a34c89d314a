// Command autofill runs the full pipeline against one listing page: it
// extracts the product image, relays it through the configured analysis
// endpoint, reconciles the attributes into the page's form fields, and
// prints the filled document to stdout.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/raine/ebay-specifics/internal/analysis"
	"github.com/raine/ebay-specifics/internal/config"
	"github.com/raine/ebay-specifics/internal/extract"
	"github.com/raine/ebay-specifics/internal/reconcile"
	"github.com/raine/ebay-specifics/internal/relay"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// defaultBindings is the binding table for the known listing edit layout.
// A different layout is supplied with -bindings; the table is always
// configuration, never derived from the page.
var defaultBindings = []reconcile.FieldBinding{
	{Attribute: "color", Selector: `input[name="color"]`},
	{Attribute: "collarType", Selector: `input[name="collarType"]`},
	{Attribute: "sleeveType", Selector: `input[name="sleeveType"]`},
	{Attribute: "fit", Selector: `input[name="fit"]`},
	{Attribute: "countryOfOrigin", Selector: `input[name="countryOfOrigin"]`},
	{Attribute: "style", Selector: `input[name="style"]`},
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	bindingsPath := flag.String("bindings", "", "path to a JSON binding table (attribute → selector)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <listing-url>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Environment variables:\n")
		fmt.Fprintf(os.Stderr, "  ANALYZE_ENDPOINT - Required, full URL of the analysis endpoint\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	pageURL := flag.Arg(0)

	config.LoadEnvFile()
	cfg, err := config.LoadAutofill()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	table, err := loadBindingTable(*bindingsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid binding table")
	}

	ctx := context.Background()

	page, err := fetchPage(ctx, pageURL)
	if err != nil {
		log.Fatal().Err(err).Str("url", pageURL).Msg("failed to fetch page")
	}

	ref, err := extract.Extract(bytes.NewReader(page), pageURL)
	if err != nil {
		log.Fatal().Err(err).Msg("extraction failed")
	}
	if ref == nil {
		log.Info().Msg("no product image on page, nothing to do")
		return
	}
	log.Info().Str("imageUrl", ref.URL).Msg("product image extracted")

	r := relay.New(analysis.NewClient(analysis.ClientOpts{Endpoint: cfg.AnalyzeEndpoint}))
	pc := r.Register()
	defer pc.Close()

	r.Submit(ctx, pc, *ref)
	ev := <-pc.Results()
	if ev.Type == relay.EventSpecificsFailed {
		log.Fatal().Str("kind", string(ev.Failure)).Msg("analysis failed")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse page for reconciliation")
	}

	rec := reconcile.New(table, func(attribute, selector, value string) {
		log.Info().Str("attribute", attribute).Str("selector", selector).Str("value", value).Msg("field set")
	})
	applied := rec.Apply(doc, ev.Data)
	log.Info().Int("applied", applied).Msg("reconciliation complete")

	html, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to render document")
	}
	fmt.Println(strings.TrimSpace(html))
}

func fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	res, err := resty.New().NewRequest().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("request failed: GET %s (status: %d)", pageURL, res.StatusCode())
	}
	return res.Body(), nil
}

func loadBindingTable(path string) (*reconcile.BindingTable, error) {
	bindings := defaultBindings
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read binding table: %w", err)
		}
		bindings = nil
		if err := json.Unmarshal(b, &bindings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal binding table: %w", err)
		}
	}
	return reconcile.NewBindingTable(bindings)
}
