// Package stores discovers callable store candidates through a maps provider
// and reorders them by relevance to the researched product.
package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"dialcart_backend/platform/config"
	"dialcart_backend/platform/logger"
	"dialcart_backend/platform/phone"
)

const (
	textSearchURL   = "https://maps.googleapis.com/maps/api/place/textsearch/json"
	placeDetailsURL = "https://maps.googleapis.com/maps/api/place/details/json"
)

// Candidate is one discovered store with enough detail to call it.
type Candidate struct {
	PlaceID      string
	Name         string
	Address      string
	Phone        string
	Rating       float64
	TotalRatings int
	Lat          float64
	Lng          float64
}

// PlacesClient talks to the Google Places text search and details endpoints.
type PlacesClient struct {
	client *http.Client
	apiKey string
	region string
	log    *logger.Logger
}

// NewPlacesClient creates a PlacesClient.
func NewPlacesClient(cfg config.MapsConfig, log *logger.Logger) *PlacesClient {
	return &PlacesClient{
		client: &http.Client{Timeout: 10 * time.Second},
		apiKey: cfg.GetMapsAPIKey(),
		region: cfg.GetMapsRegion(),
		log:    log,
	}
}

type textSearchResult struct {
	PlaceID          string  `json:"place_id"`
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	Rating           float64 `json:"rating"`
	UserRatingsTotal int     `json:"user_ratings_total"`
}

type textSearchResponse struct {
	Status       string             `json:"status"`
	ErrorMessage string             `json:"error_message"`
	Results      []textSearchResult `json:"results"`
}

type placeDetailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Name                     string  `json:"name"`
		FormattedAddress         string  `json:"formatted_address"`
		FormattedPhoneNumber     string  `json:"formatted_phone_number"`
		InternationalPhoneNumber string  `json:"international_phone_number"`
		Rating                   float64 `json:"rating"`
		UserRatingsTotal         int     `json:"user_ratings_total"`
		Geometry                 struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

// TextSearch runs one Places text search and returns raw results sorted by
// rating, ties broken by review count.
func (c *PlacesClient) TextSearch(ctx context.Context, query string) ([]textSearchResult, error) {
	params := url.Values{}
	params.Add("query", query)
	params.Add("region", c.region)
	params.Add("key", c.apiKey)

	var payload textSearchResponse
	if err := c.get(ctx, textSearchURL, params, &payload); err != nil {
		return nil, err
	}

	if payload.Status != "OK" && payload.Status != "ZERO_RESULTS" {
		c.log.Error("places text search failed", "status", payload.Status, "error", payload.ErrorMessage)
		return nil, fmt.Errorf("places text search: %s", payload.Status)
	}

	results := payload.Results
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Rating != results[j].Rating {
			return results[i].Rating > results[j].Rating
		}
		return results[i].UserRatingsTotal > results[j].UserRatingsTotal
	})

	return results, nil
}

// Details resolves a place id to a full candidate including its phone number.
// Stores without a dialable phone return ok=false.
func (c *PlacesClient) Details(ctx context.Context, placeID string) (Candidate, bool, error) {
	params := url.Values{}
	params.Add("place_id", placeID)
	params.Add("fields", "formatted_phone_number,international_phone_number,name,rating,user_ratings_total,formatted_address,geometry")
	params.Add("key", c.apiKey)

	var payload placeDetailsResponse
	if err := c.get(ctx, placeDetailsURL, params, &payload); err != nil {
		return Candidate{}, false, err
	}

	if payload.Status != "OK" {
		return Candidate{}, false, fmt.Errorf("place details: %s", payload.Status)
	}

	d := payload.Result
	number := d.InternationalPhoneNumber
	if number == "" {
		number = d.FormattedPhoneNumber
	}
	if !phone.IsDialable(number) {
		return Candidate{}, false, nil
	}

	return Candidate{
		PlaceID:      placeID,
		Name:         d.Name,
		Address:      d.FormattedAddress,
		Phone:        phone.NormalizeE164(number),
		Rating:       d.Rating,
		TotalRatings: d.UserRatingsTotal,
		Lat:          d.Geometry.Location.Lat,
		Lng:          d.Geometry.Location.Lng,
	}, true, nil
}

func (c *PlacesClient) get(ctx context.Context, baseURL string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s?%s", baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error("places request failed", "error", err)
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		c.log.Error("places upstream error", "status", resp.StatusCode)
		return fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
