package source

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/retrocellar/price-enricher/config"
	"github.com/retrocellar/price-enricher/models"
)

const findingOKResponse = `<?xml version="1.0" encoding="UTF-8"?>
<findCompletedItemsResponse xmlns="http://www.ebay.com/marketplace/search/v1/services">
  <ack>Success</ack>
  <searchResult count="2">
    <item>
      <title>Super Mario World SNES PAL CIB</title>
      <viewItemURL>https://www.ebay.co.uk/itm/1</viewItemURL>
      <sellingStatus>
        <currentPrice currencyId="GBP">42.50</currentPrice>
      </sellingStatus>
      <listingInfo>
        <endTime>2026-08-01T12:00:00Z</endTime>
      </listingInfo>
      <condition>
        <conditionDisplayName>Used</conditionDisplayName>
      </condition>
      <shippingInfo>
        <shippingServiceCost currencyId="GBP">3.50</shippingServiceCost>
      </shippingInfo>
    </item>
    <item>
      <title>Super Mario World SNES PAL boxed</title>
      <viewItemURL>https://www.ebay.co.uk/itm/2</viewItemURL>
      <sellingStatus>
        <currentPrice currencyId="GBP">39.99</currentPrice>
      </sellingStatus>
      <listingInfo>
        <endTime>2026-08-02T12:00:00Z</endTime>
      </listingInfo>
    </item>
    <item>
      <title></title>
      <sellingStatus>
        <currentPrice currencyId="GBP">1.00</currentPrice>
      </sellingStatus>
    </item>
  </searchResult>
</findCompletedItemsResponse>`

const findingAuthErrorResponse = `<?xml version="1.0" encoding="UTF-8"?>
<findCompletedItemsResponse>
  <ack>Failure</ack>
  <errorMessage>
    <error>
      <message>Invalid Application: bad appname</message>
    </error>
  </errorMessage>
</findCompletedItemsResponse>`

func auctionTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AuctionAppID = "test-app-id"
	return cfg
}

func mockedAuctionSource(t *testing.T) (*AuctionSource, *httpmock.MockTransport) {
	t.Helper()
	src, err := NewAuctionSource(auctionTestConfig())
	if err != nil {
		t.Fatalf("NewAuctionSource() error: %v", err)
	}
	transport := httpmock.NewMockTransport()
	src.WithClient(&http.Client{Transport: transport})
	return src, transport
}

func palQuery() models.PriceQuery {
	return models.PriceQuery{
		Platform:  "SNES",
		Title:     "Super Mario World",
		Region:    models.RegionPAL,
		Packaging: models.PackagingCIB,
	}
}

func TestNewAuctionSourceRequiresAppID(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := NewAuctionSource(cfg); err == nil {
		t.Fatalf("NewAuctionSource() without app ID should fail")
	} else {
		var authErr ErrAuth
		if !errors.As(err, &authErr) {
			t.Fatalf("error = %v, want auth error", err)
		}
	}
}

func TestAuctionQueryParsesSoldListings(t *testing.T) {
	src, transport := mockedAuctionSource(t)
	transport.RegisterResponder(http.MethodGet, "https://svcs.ebay.com/services/search/FindingService/v1",
		func(req *http.Request) (*http.Response, error) {
			params := req.URL.Query()
			if got := params.Get("OPERATION-NAME"); got != "findCompletedItems" {
				t.Errorf("OPERATION-NAME = %q", got)
			}
			if got := params.Get("SECURITY-APPNAME"); got != "test-app-id" {
				t.Errorf("SECURITY-APPNAME = %q", got)
			}
			if got := params.Get("GLOBAL-ID"); got != "EBAY-GB" {
				t.Errorf("GLOBAL-ID = %q for PAL", got)
			}
			if got := params.Get("itemFilter(0).name"); got != "SoldItemsOnly" {
				t.Errorf("itemFilter(0).name = %q", got)
			}
			return httpmock.NewStringResponse(200, findingOKResponse), nil
		})

	observations, err := src.Query(context.Background(), palQuery())
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("got %d observations, want 2 (titleless item dropped)", len(observations))
	}

	first := observations[0]
	if first.Amount.String() != "42.5" {
		t.Fatalf("amount = %s, want 42.5", first.Amount)
	}
	if first.Currency != "GBP" {
		t.Fatalf("currency = %q, want GBP", first.Currency)
	}
	if first.Shipping.String() != "3.5" {
		t.Fatalf("shipping = %s, want 3.5", first.Shipping)
	}
	if first.ListedCondition != "Used" {
		t.Fatalf("condition = %q, want Used", first.ListedCondition)
	}
	want := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if !first.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", first.Timestamp, want)
	}
	if first.Source != config.NamespaceAuction {
		t.Fatalf("source = %q", first.Source)
	}
}

func TestAuctionSiteFollowsRegion(t *testing.T) {
	tests := []struct {
		region models.Region
		want   string
	}{
		{region: models.RegionPAL, want: "EBAY-GB"},
		{region: models.RegionNTSCU, want: "EBAY-US"},
		{region: models.RegionNTSCJ, want: "EBAY-JP"},
	}
	for _, tt := range tests {
		if got := siteForRegion(tt.region); got != tt.want {
			t.Fatalf("siteForRegion(%s) = %q, want %q", tt.region, got, tt.want)
		}
	}
}

func TestAuctionQueryRequiresRegion(t *testing.T) {
	src, _ := mockedAuctionSource(t)
	query := palQuery()
	query.Region = ""

	_, err := src.Query(context.Background(), query)
	var badQuery ErrBadQuery
	if !errors.As(err, &badQuery) {
		t.Fatalf("Query() without region error = %v, want bad-query", err)
	}
}

func TestAuctionQueryClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			name: "auth status", status: 401, body: "denied",
			check: func(err error) bool { var e ErrAuth; return errors.As(err, &e) },
		},
		{
			name: "rate limited", status: 429, body: "slow down",
			check: func(err error) bool { var e ErrRateLimited; return errors.As(err, &e) },
		},
		{
			name: "server error", status: 500, body: "boom",
			check: func(err error) bool { var e ErrUnavailable; return errors.As(err, &e) },
		},
		{
			name: "api auth failure", status: 200, body: findingAuthErrorResponse,
			check: func(err error) bool { var e ErrAuth; return errors.As(err, &e) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, transport := mockedAuctionSource(t)
			transport.RegisterResponder(http.MethodGet, "https://svcs.ebay.com/services/search/FindingService/v1",
				httpmock.NewStringResponder(tt.status, tt.body))

			_, err := src.Query(context.Background(), palQuery())
			if err == nil || !tt.check(err) {
				t.Fatalf("Query() error = %v, wrong classification", err)
			}
		})
	}
}
