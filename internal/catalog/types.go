package catalog

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrWong99/cadenza/internal/config"
	"github.com/MrWong99/cadenza/internal/toolerr"
)

// Artwork describes a catalog artwork asset.
type Artwork struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// PlayParams carries the playback parameters attached to a playable
// catalog resource.
type PlayParams struct {
	ID        string `json:"id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	CatalogID string `json:"catalogId,omitempty"`
}

// Resource is the raw shape of one catalog resource as returned by the
// API: an id/type pair plus a bag of attributes.
type Resource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name             string      `json:"name"`
		ArtistName       string      `json:"artistName"`
		AlbumName        string      `json:"albumName"`
		GenreNames       []string    `json:"genreNames"`
		URL              string      `json:"url"`
		Artwork          *Artwork    `json:"artwork"`
		DurationInMillis int64       `json:"durationInMillis"`
		ReleaseDate      string      `json:"releaseDate"`
		PlayParams       *PlayParams `json:"playParams"`
	} `json:"attributes"`
}

// Song is the flat normalized record handed to tool clients.
type Song struct {
	ID             string      `json:"id"`
	Type           string      `json:"type"`
	Name           string      `json:"name"`
	Artist         string      `json:"artist"`
	Album          string      `json:"album"`
	GenreNames     []string    `json:"genre_names"`
	URL            string      `json:"url"`
	Artwork        Artwork     `json:"artwork"`
	DurationMillis int64       `json:"duration_in_millis"`
	ReleaseDate    string      `json:"release_date"`
	PlayParams     *PlayParams `json:"play_params"`
}

// NormalizeSong flattens a raw catalog resource into a [Song].
func NormalizeSong(r Resource) Song {
	song := Song{
		ID:             r.ID,
		Type:           r.Type,
		Name:           r.Attributes.Name,
		Artist:         r.Attributes.ArtistName,
		Album:          r.Attributes.AlbumName,
		GenreNames:     r.Attributes.GenreNames,
		URL:            r.Attributes.URL,
		DurationMillis: r.Attributes.DurationInMillis,
		ReleaseDate:    r.Attributes.ReleaseDate,
		PlayParams:     r.Attributes.PlayParams,
	}
	if r.Attributes.Artwork != nil {
		song.Artwork = *r.Attributes.Artwork
	}
	return song
}

// SearchResponse is the decoded body of a catalog search: one bucket of
// resources per requested type. Raw preserves the verbatim response body
// for clients that want the unnormalized form.
type SearchResponse struct {
	Results map[string]struct {
		Data []Resource `json:"data"`
	} `json:"results"`

	Raw json.RawMessage `json:"-"`
}

// Songs returns the normalized resources across all result buckets.
func (r *SearchResponse) Songs() []Song {
	var songs []Song
	for _, bucket := range r.Results {
		for _, res := range bucket.Data {
			songs = append(songs, NormalizeSong(res))
		}
	}
	return songs
}

// Hits counts the resources across all result buckets.
func (r *SearchResponse) Hits() int {
	n := 0
	for _, bucket := range r.Results {
		n += len(bucket.Data)
	}
	return n
}

// SearchCatalog queries the storefront's search endpoint. types is joined
// comma-separated as the API expects.
func (c *Client) SearchCatalog(ctx context.Context, cfg config.MusicKitConfig, term string, types []string, limit, offset int) (*SearchResponse, error) {
	query := url.Values{
		"term":   {term},
		"types":  {strings.Join(types, ",")},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}

	var out SearchResponse
	body, err := c.getJSON(ctx, cfg, "/v1/catalog/"+cfg.Storefront+"/search", query, &out)
	if err != nil {
		return nil, err
	}
	out.Raw = body
	return &out, nil
}

// GetResource fetches a single catalog resource of the given type.
func (c *Client) GetResource(ctx context.Context, cfg config.MusicKitConfig, resourceType, id string) ([]Resource, error) {
	var out struct {
		Data []Resource `json:"data"`
	}
	path := "/v1/catalog/" + cfg.Storefront + "/" + resourceType + "/" + url.PathEscape(id)
	if _, err := c.getJSON(ctx, cfg, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GetSong fetches one song by catalog id and returns it normalized.
// An empty data list classifies as track_not_found.
func (c *Client) GetSong(ctx context.Context, cfg config.MusicKitConfig, songID string) (Song, error) {
	resources, err := c.GetResource(ctx, cfg, "songs", songID)
	if err != nil {
		return Song{}, err
	}
	if len(resources) == 0 {
		return Song{}, toolerr.New(
			toolerr.CodeTrackNotFound,
			"The requested track was not found in the Apple Music catalog.",
			"Verify the identifier and storefront settings.",
		)
	}
	return NormalizeSong(resources[0]), nil
}
