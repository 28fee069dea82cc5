// Package parser turns profile listing markup into records.
package parser

import (
	"bytes"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/backlog-match/models"
)

// Selectors used on a profile games listing.
const (
	EntrySelector  = ".rating-hover"
	TitleSelector  = ".game-text-centered"
	StarsSelector  = ".stars-top"
	DataRatingAttr = "data-rating"

	UnknownTitle = "Unknown Title"
	MaxRating    = 5.0
)

// Extract returns one record per listing entry on the page, in page order.
// Malformed entries are kept with defaulted fields.
func Extract(content []byte) ([]models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var records []models.Record
	doc.Find(EntrySelector).Each(func(_ int, entry *goquery.Selection) {
		records = append(records, extractRecord(entry))
	})
	return records, nil
}

func extractRecord(entry *goquery.Selection) models.Record {
	title := strings.TrimSpace(entry.Find(TitleSelector).First().Text())
	if title == "" {
		title = UnknownTitle
	}

	rating := 0.0
	if style, ok := entry.Find(StarsSelector).First().Attr("style"); ok {
		rating = StarsWidthToRating(style)
	}
	if rating == 0 {
		if value, ok := entry.Find("[" + DataRatingAttr + "]").First().Attr(DataRatingAttr); ok {
			rating = DataRatingToRating(value)
		}
	}

	return models.Record{Title: title, Rating: ClampRating(rating)}
}

// StarsWidthToRating maps a "width: 80%" style to the 5-point scale.
func StarsWidthToRating(style string) float64 {
	_, after, found := strings.Cut(style, "width:")
	if !found {
		return 0
	}
	width, _, _ := strings.Cut(after, "%")
	value, err := strconv.ParseFloat(strings.TrimSpace(width), 64)
	if err != nil {
		return 0
	}
	return value / 20
}

// DataRatingToRating maps a 10-point data-rating value to the 5-point scale.
func DataRatingToRating(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return parsed / 2
}

// ClampRating keeps a rating inside [0, MaxRating]; NaN becomes unrated.
func ClampRating(rating float64) float64 {
	switch {
	case math.IsNaN(rating), rating < 0:
		return 0
	case rating > MaxRating:
		return MaxRating
	default:
		return rating
	}
}

// ValidateRecord ensures a record is fit for persistence.
func ValidateRecord(r models.Record) error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("record missing title")
	}
	if math.IsNaN(r.Rating) || r.Rating < 0 || r.Rating > MaxRating {
		return fmt.Errorf("record %q has rating %v outside [0, %v]", r.Title, r.Rating, MaxRating)
	}
	return nil
}

// ResolveProfile accepts a username or a profile URL and returns the
// username together with the games listing URL.
func ResolveProfile(input, baseURL string) (string, string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", fmt.Errorf("profile cannot be empty")
	}

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		parsed, err := url.Parse(input)
		if err != nil {
			return "", "", fmt.Errorf("invalid profile URL: %w", err)
		}
		_, rest, found := strings.Cut(parsed.Path, "/u/")
		if !found {
			return "", "", fmt.Errorf("profile URL %q has no /u/<username> segment", input)
		}
		username, _, _ := strings.Cut(rest, "/")
		if username == "" {
			return "", "", fmt.Errorf("profile URL %q has an empty username", input)
		}
		return username, input, nil
	}

	if strings.Contains(input, "/") {
		return "", "", fmt.Errorf("username %q cannot contain '/'", input)
	}
	return input, ProfileURL(baseURL, input), nil
}

// ProfileURL builds the games listing URL for username.
func ProfileURL(baseURL, username string) string {
	return strings.TrimSuffix(baseURL, "/") + "/u/" + url.PathEscape(username) + "/games/"
}
