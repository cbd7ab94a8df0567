package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	appLog "opsdash/internal/log"
)

var ErrCityNotFound = errors.New("city not found")

// Place is a geocoding match.
type Place struct {
	Name      string  `json:"name"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Current is the "current_weather" block of an Open-Meteo forecast.
type Current struct {
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
	WeatherCode   int     `json:"weathercode"`
	Time          string  `json:"time"`
}

// Day is one row of the daily forecast.
type Day struct {
	Date        string  `json:"date"`
	TempMax     float64 `json:"t_max"`
	TempMin     float64 `json:"t_min"`
	PrecipSum   float64 `json:"precip_sum"`
	WeatherCode int     `json:"weathercode"`
}

// Forecast is the current conditions plus up to seven daily rows.
type Forecast struct {
	Current *Current `json:"current,omitempty"`
	Daily   []Day    `json:"daily"`
}

// Client talks to the Open-Meteo geocoding and forecast APIs.
type Client struct {
	geocodeURL  string
	forecastURL string
	client      *http.Client
}

func NewClient(geocodeURL, forecastURL string) *Client {
	return &Client{
		geocodeURL:  geocodeURL,
		forecastURL: forecastURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type geocodeResponse struct {
	Results []Place `json:"results"`
}

// Geocode returns the best match for city.
func (c *Client) Geocode(ctx context.Context, city string) (Place, error) {
	if city == "" {
		return Place{}, ErrCityNotFound
	}

	q := url.Values{}
	q.Set("name", city)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	var body geocodeResponse
	if err := c.getJSON(ctx, c.geocodeURL, q, &body); err != nil {
		return Place{}, fmt.Errorf("geocode %q: %w", city, err)
	}
	if len(body.Results) == 0 {
		return Place{}, fmt.Errorf("%w: %q", ErrCityNotFound, city)
	}
	return body.Results[0], nil
}

type forecastResponse struct {
	CurrentWeather *Current `json:"current_weather"`
	Daily          struct {
		Time             []string  `json:"time"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		TemperatureMin   []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WeatherCode      []int     `json:"weathercode"`
	} `json:"daily"`
}

// Forecast fetches current conditions and a 7-day daily forecast.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (Forecast, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current_weather", "true")
	q.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,weathercode")
	q.Set("forecast_days", "7")
	q.Set("timezone", "auto")

	var body forecastResponse
	if err := c.getJSON(ctx, c.forecastURL, q, &body); err != nil {
		return Forecast{}, fmt.Errorf("forecast: %w", err)
	}

	d := body.Daily
	out := Forecast{Current: body.CurrentWeather, Daily: make([]Day, 0, len(d.Time))}
	for i, date := range d.Time {
		out.Daily = append(out.Daily, Day{
			Date:        date,
			TempMax:     at(d.TemperatureMax, i),
			TempMin:     at(d.TemperatureMin, i),
			PrecipSum:   at(d.PrecipitationSum, i),
			WeatherCode: at(d.WeatherCode, i),
		})
	}
	return out, nil
}

// at tolerates ragged daily arrays.
func at[T any](xs []T, i int) T {
	var zero T
	if i < len(xs) {
		return xs[i]
	}
	return zero
}

func (c *Client) getJSON(ctx context.Context, base string, q url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		appLog.Warn("weather api non-OK", "url", base, "status", resp.StatusCode)
		return fmt.Errorf("weather API returned status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to parse weather data: %w", err)
	}
	return nil
}
