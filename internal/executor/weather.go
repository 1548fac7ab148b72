package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	openWeatherURL    = "https://api.openweathermap.org/data/2.5/weather"
	apiRequestTimeout = 10 * time.Second
)

// mockWeather is the fallback table used when no API key is configured,
// so the pipeline stays testable without live credentials.
var mockWeather = map[string]struct {
	TempC     int
	Condition string
}{
	"paris":         {12, "cloudy"},
	"london":        {8, "rainy"},
	"tokyo":         {18, "sunny"},
	"new york":      {5, "windy"},
	"san francisco": {15, "foggy"},
}

// NewGetCurrentWeather builds the get_current_weather executor. With an
// api_key secret it calls OpenWeatherMap; without one it serves mock
// data. A nil client gets a default with a request timeout.
func NewGetCurrentWeather(client *http.Client) Func {
	if client == nil {
		client = &http.Client{Timeout: apiRequestTimeout}
	}
	return func(ctx context.Context, args map[string]any, secrets map[string]string) (*Result, error) {
		location, _ := args["location"].(string)
		if location == "" {
			location = "Unknown"
		}
		format, _ := args["format"].(string)
		if format == "" {
			format = "celsius"
		}

		apiKey := secrets["api_key"]
		if apiKey == "" {
			return mockWeatherResult(location, format)
		}

		res, err := fetchWeather(ctx, client, location, format, apiKey)
		if err != nil {
			// Degrade to mock data rather than failing the call.
			mock, mockErr := mockWeatherResult(location, format)
			if mockErr != nil {
				return nil, mockErr
			}
			return &Result{
				Success: true,
				Content: "Weather API unavailable, using cached data. " + mock.Content,
			}, nil
		}
		return res, nil
	}
}

func fetchWeather(ctx context.Context, client *http.Client, location, format, apiKey string) (*Result, error) {
	units := "metric"
	unit := "°C"
	if format == "fahrenheit" {
		units = "imperial"
		unit = "°F"
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", apiKey)
	q.Set("units", units)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openWeatherURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather api returned %d", resp.StatusCode)
	}

	var body struct {
		Name string `json:"name"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	condition := ""
	if len(body.Weather) > 0 {
		condition = body.Weather[0].Description
	}
	name := body.Name
	if name == "" {
		name = location
	}

	content, err := json.Marshal(map[string]string{
		"location":    name,
		"temperature": fmt.Sprintf("%.1f%s", body.Main.Temp, unit),
		"condition":   condition,
		"humidity":    fmt.Sprintf("%d%%", body.Main.Humidity),
		"source":      "openweathermap",
	})
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Content: string(content)}, nil
}

func mockWeatherResult(location, format string) (*Result, error) {
	key := strings.TrimSpace(strings.ToLower(strings.SplitN(location, ",", 2)[0]))
	data, ok := mockWeather[key]
	if !ok {
		data.TempC = 20
		data.Condition = "partly cloudy"
	}

	temp := data.TempC
	unit := "°C"
	if format == "fahrenheit" {
		temp = temp*9/5 + 32
		unit = "°F"
	}

	content, err := json.Marshal(map[string]string{
		"location":    location,
		"temperature": fmt.Sprintf("%d%s", temp, unit),
		"condition":   data.Condition,
		"source":      "mock_data",
	})
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Content: string(content)}, nil
}
