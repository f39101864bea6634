// Package format renders backend tool results as chat replies.
package format

import (
	"fmt"
	"strings"
)

// maxFileContent bounds how much of a file is echoed into chat.
const maxFileContent = 500

// FileContent renders a read_file result, truncated for chat.
func FileContent(content string) string {
	if len(content) > maxFileContent {
		return "File content:\n" + content[:maxFileContent] + "..."
	}
	return "File content:\n" + content
}

// DirEntry is one item of a list_directory result.
type DirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DirectoryListing renders a list_directory result.
func DirectoryListing(entries []DirEntry) string {
	if len(entries) == 0 {
		return "Directory is empty."
	}
	var b strings.Builder
	b.WriteString("Directory contents:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s (%s)\n", e.Name, e.Type)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Weather is the data payload of a get_weather result.
type Weather struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"`
}

// CurrentWeather renders current conditions.
func CurrentWeather(w Weather) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weather in %s\n", w.City)
	fmt.Fprintf(&b, "  Temperature: %.1f C\n", w.Temperature)
	fmt.Fprintf(&b, "  Humidity: %d%%\n", w.Humidity)
	fmt.Fprintf(&b, "  Conditions: %s\n", w.Description)
	fmt.Fprintf(&b, "  Wind: %.1f km/h", w.WindSpeed)
	return b.String()
}

// ForecastDay is one day of a get_forecast result.
type ForecastDay struct {
	Date        string  `json:"date"`
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
	Description string  `json:"description"`
}

// Forecast is the data payload of a get_forecast result.
type Forecast struct {
	City     string        `json:"city"`
	Forecast []ForecastDay `json:"forecast"`
}

// ForecastText renders a multi-day forecast.
func ForecastText(f Forecast) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Forecast for %s\n", f.City)
	for _, day := range f.Forecast {
		fmt.Fprintf(&b, "\n%s\n", day.Date)
		fmt.Fprintf(&b, "  %.1f C, %d%% humidity, %s\n", day.Temperature, day.Humidity, day.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Alert is one entry of a get_weather_alerts result.
type Alert struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Alerts is the data payload of a get_weather_alerts result.
type Alerts struct {
	City       string  `json:"city"`
	AlertCount int     `json:"alert_count"`
	Alerts     []Alert `json:"alerts"`
}

// AlertsText renders active weather alerts.
func AlertsText(a Alerts) string {
	if a.AlertCount == 0 {
		return fmt.Sprintf("No weather alerts for %s.", a.City)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Alerts for %s:\n", a.City)
	for _, al := range a.Alerts {
		name := strings.ReplaceAll(al.Type, "_", " ")
		fmt.Fprintf(&b, "\n[%s] %s\n  %s\n", al.Level, name, al.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}
