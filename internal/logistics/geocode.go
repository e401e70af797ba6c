// Package logistics books and tracks delivery for a confirmed option: quoting
// couriers, placing the order with the delivery provider, and applying the
// provider's callback-driven state machine.
package logistics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"dialcart_backend/platform/config"
	"dialcart_backend/platform/logger"
)

const geocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

var pincodeRe = regexp.MustCompile(`\b[1-9][0-9]{5}\b`)

// ExtractPincode pulls a six-digit Indian pincode out of address text.
func ExtractPincode(address string) string {
	return pincodeRe.FindString(address)
}

// GeoPoint is a resolved location.
type GeoPoint struct {
	Lat              float64
	Lng              float64
	Pincode          string
	City             string
	State            string
	FormattedAddress string
}

// Geocoder resolves addresses through the Google geocoding API.
type Geocoder struct {
	client *http.Client
	apiKey string
	region string
	log    *logger.Logger
}

// NewGeocoder creates a Geocoder.
func NewGeocoder(cfg config.MapsConfig, log *logger.Logger) *Geocoder {
	return &Geocoder{
		client: &http.Client{Timeout: 10 * time.Second},
		apiKey: cfg.GetMapsAPIKey(),
		region: cfg.GetMapsRegion(),
		log:    log,
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-text address to coordinates plus postal fields.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*GeoPoint, error) {
	params := url.Values{}
	params.Add("address", address)
	params.Add("region", g.region)
	params.Add("key", g.apiKey)

	return g.query(ctx, params, address)
}

// ReverseGeocode resolves coordinates to postal fields. Used when a store's
// address text carries no pincode.
func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeoPoint, error) {
	params := url.Values{}
	params.Add("latlng", fmt.Sprintf("%f,%f", lat, lng))
	params.Add("key", g.apiKey)

	return g.query(ctx, params, "")
}

func (g *Geocoder) query(ctx context.Context, params url.Values, fallbackAddress string) (*GeoPoint, error) {
	reqURL := fmt.Sprintf("%s?%s", geocodeURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.ProviderError("maps", "geocode", err)
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode upstream error: %d", resp.StatusCode)
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	if payload.Status != "OK" || len(payload.Results) == 0 {
		return nil, fmt.Errorf("geocode failed: %s", payload.Status)
	}

	top := payload.Results[0]
	point := &GeoPoint{
		Lat:              top.Geometry.Location.Lat,
		Lng:              top.Geometry.Location.Lng,
		FormattedAddress: top.FormattedAddress,
	}

	for _, comp := range top.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "postal_code":
				point.Pincode = comp.LongName
			case "locality":
				point.City = comp.LongName
			case "administrative_area_level_1":
				point.State = comp.LongName
			}
		}
	}

	if point.Pincode == "" {
		point.Pincode = ExtractPincode(top.FormattedAddress)
	}
	if point.Pincode == "" && fallbackAddress != "" {
		point.Pincode = ExtractPincode(fallbackAddress)
	}

	return point, nil
}
