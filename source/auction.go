package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retrocellar/price-enricher/config"
	"github.com/retrocellar/price-enricher/models"
)

const (
	findingAPIPath    = "/services/search/FindingService/v1"
	findingAPIVersion = "1.0.0"
	auctionPageSize   = 50
)

// AuctionSource fetches sold listings from the eBay Finding API
// (findCompletedItems with SoldItemsOnly). It is region-aware: the
// query's region selects the marketplace site, and a missing region is
// a caller error, never a query variant.
type AuctionSource struct {
	appID     string
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewAuctionSource builds the credentialed auction client.
func NewAuctionSource(cfg *config.Config) (*AuctionSource, error) {
	if cfg.AuctionAppID == "" {
		return nil, ErrUnavailable{Source: config.NamespaceAuction, Err: ErrAuth{Err: fmt.Errorf("no app ID configured")}}
	}
	return &AuctionSource{
		appID:     cfg.AuctionAppID,
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   "https://svcs.ebay.com",
		userAgent: cfg.UserAgent,
	}, nil
}

// WithClient swaps the HTTP client; tests install a mock transport.
func (s *AuctionSource) WithClient(client *http.Client) *AuctionSource {
	s.client = client
	return s
}

// WithBaseURL overrides the API host.
func (s *AuctionSource) WithBaseURL(base string) *AuctionSource {
	s.baseURL = base
	return s
}

// Namespace implements PriceSource.
func (s *AuctionSource) Namespace() string { return config.NamespaceAuction }

// siteForRegion maps the pricing region onto the marketplace whose sold
// prices best represent it.
func siteForRegion(region models.Region) string {
	switch region {
	case models.RegionNTSCU:
		return "EBAY-US"
	case models.RegionNTSCJ:
		return "EBAY-JP"
	default:
		return "EBAY-GB"
	}
}

// Query implements PriceSource.
func (s *AuctionSource) Query(ctx context.Context, query models.PriceQuery) ([]models.PriceObservation, error) {
	if query.Region == "" {
		return nil, ErrBadQuery{Err: fmt.Errorf("query without region")}
	}

	keywords := buildSearchKeywords(query)
	for _, negative := range buildNegativeKeywords(query) {
		if strings.Contains(negative, " ") {
			keywords += fmt.Sprintf(" -%q", negative)
		} else {
			keywords += " -" + negative
		}
	}

	params := url.Values{}
	params.Set("OPERATION-NAME", "findCompletedItems")
	params.Set("SERVICE-VERSION", findingAPIVersion)
	params.Set("SECURITY-APPNAME", s.appID)
	params.Set("RESPONSE-DATA-FORMAT", "XML")
	params.Set("GLOBAL-ID", siteForRegion(query.Region))
	params.Set("keywords", keywords)
	params.Set("itemFilter(0).name", "SoldItemsOnly")
	params.Set("itemFilter(0).value", "true")
	params.Set("sortOrder", "EndTimeSoonest")
	params.Set("paginationInput.entriesPerPage", fmt.Sprint(auctionPageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+findingAPIPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, ErrBadQuery{Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyHTTPError(err, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(fmt.Errorf("http status %d", resp.StatusCode), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrUnavailable{Source: s.Namespace(), Err: err}
	}
	return s.parseResponse(body)
}

func classifyHTTPError(err error, status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth{Err: err}
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return ErrRateLimited{Err: err}
	}
	if IsTransient(err) {
		return ErrTimeout{Err: err}
	}
	return ErrUnavailable{Source: config.NamespaceAuction, Err: err}
}

// Finding API response subset. Namespaces are ignored; the local
// element names are unambiguous.
type findingResponse struct {
	Ack          string `xml:"ack"`
	ErrorMessage struct {
		Error struct {
			Message string `xml:"message"`
		} `xml:"error"`
	} `xml:"errorMessage"`
	SearchResult struct {
		Items []findingItem `xml:"item"`
	} `xml:"searchResult"`
}

type findingItem struct {
	Title         string `xml:"title"`
	ViewItemURL   string `xml:"viewItemURL"`
	SellingStatus struct {
		CurrentPrice struct {
			Value    string `xml:",chardata"`
			Currency string `xml:"currencyId,attr"`
		} `xml:"currentPrice"`
	} `xml:"sellingStatus"`
	ListingInfo struct {
		EndTime string `xml:"endTime"`
	} `xml:"listingInfo"`
	Condition struct {
		DisplayName string `xml:"conditionDisplayName"`
	} `xml:"condition"`
	ShippingInfo struct {
		ServiceCost struct {
			Value    string `xml:",chardata"`
			Currency string `xml:"currencyId,attr"`
		} `xml:"shippingServiceCost"`
	} `xml:"shippingInfo"`
}

func (s *AuctionSource) parseResponse(body []byte) ([]models.PriceObservation, error) {
	var parsed findingResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, ErrUnavailable{Source: s.Namespace(), Err: fmt.Errorf("decode response: %w", err)}
	}

	if parsed.Ack != "Success" && parsed.Ack != "Warning" {
		message := parsed.ErrorMessage.Error.Message
		if message == "" {
			message = "unknown API error"
		}
		err := fmt.Errorf("api error: %s", message)
		lower := strings.ToLower(message)
		if strings.Contains(lower, "appname") || strings.Contains(lower, "application") {
			return nil, ErrAuth{Err: err}
		}
		if strings.Contains(lower, "rate") || strings.Contains(lower, "exceeded") {
			return nil, ErrRateLimited{Err: err}
		}
		return nil, ErrUnavailable{Source: s.Namespace(), Err: err}
	}

	var observations []models.PriceObservation
	for _, item := range parsed.SearchResult.Items {
		obs, ok := s.toObservation(item)
		if ok {
			observations = append(observations, obs)
		}
	}
	return observations, nil
}

func (s *AuctionSource) toObservation(item findingItem) (models.PriceObservation, bool) {
	if item.Title == "" {
		return models.PriceObservation{}, false
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(item.SellingStatus.CurrentPrice.Value))
	if err != nil {
		return models.PriceObservation{}, false
	}

	soldAt := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, item.ListingInfo.EndTime); err == nil {
		soldAt = t
	}

	shipping := decimal.Zero
	if raw := strings.TrimSpace(item.ShippingInfo.ServiceCost.Value); raw != "" {
		if cost, err := decimal.NewFromString(raw); err == nil {
			shipping = cost
		}
	}

	currency := item.SellingStatus.CurrentPrice.Currency
	if currency == "" {
		currency = "USD"
	}

	return models.PriceObservation{
		Amount:          amount,
		Currency:        currency,
		Timestamp:       soldAt,
		ListedTitle:     item.Title,
		ListedCondition: item.Condition.DisplayName,
		URL:             item.ViewItemURL,
		Source:          s.Namespace(),
		Shipping:        shipping,
		HasAmount:       true,
	}, true
}
