package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

const (
	notionAPIBase = "https://api.notion.com/v1"
	notionVersion = "2022-06-28"

	// Database property names. The integration owns the database schema, so
	// these are fixed, not configurable.
	propTitle     = "Name"
	propSource    = "Source"
	propBackend   = "Backend"
	propFamily    = "Family"
	propSentiment = "Sentiment"
	propTopics    = "Topics"
)

// NotionBackend implements the sink contract against the Notion REST API.
type NotionBackend struct {
	token      string
	databaseID string
	client     *http.Client
}

var _ core.SinkBackend = (*NotionBackend)(nil)

func NewNotionBackend(token, databaseID string, timeout time.Duration) *NotionBackend {
	return &NotionBackend{
		token:      token,
		databaseID: databaseID,
		client:     &http.Client{Timeout: timeout},
	}
}

// Query runs a contains-filter against the database. Notion only supports
// substring filtering, so callers exact-match the returned pages themselves.
func (n *NotionBackend) Query(ctx context.Context, filter models.PageFilter) ([]models.RemotePage, error) {
	var propFilter map[string]any
	switch filter.Property {
	case propTitle:
		propFilter = map[string]any{
			"property": propTitle,
			"title":    map[string]any{"contains": filter.Contains},
		}
	case propSource:
		propFilter = map[string]any{
			"property": propSource,
			"url":      map[string]any{"contains": filter.Contains},
		}
	default:
		return nil, fmt.Errorf("notion query: unsupported property %q", filter.Property)
	}

	var pages []models.RemotePage
	var cursor string
	for {
		payload := map[string]any{"filter": propFilter, "page_size": 100}
		if cursor != "" {
			payload["start_cursor"] = cursor
		}

		raw, err := n.do(ctx, http.MethodPost, fmt.Sprintf("/databases/%s/query", n.databaseID), payload)
		if err != nil {
			return nil, fmt.Errorf("notion query: %w", err)
		}

		var resp notionQueryResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("notion query: decode: %w", err)
		}
		for _, p := range resp.Results {
			pages = append(pages, models.RemotePage{
				Ref:       models.RemotePageRef{ID: p.ID, URL: p.URL},
				Title:     p.title(),
				SourceURL: p.sourceURL(),
			})
		}
		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// CreatePage creates a database row with the given properties and content.
func (n *NotionBackend) CreatePage(ctx context.Context, props core.PageProperties, blocks []core.Block) (*models.RemotePageRef, error) {
	payload := map[string]any{
		"parent":     map[string]any{"database_id": n.databaseID},
		"properties": encodeProperties(props),
		"children":   encodeBlocks(blocks),
	}

	raw, err := n.do(ctx, http.MethodPost, "/pages", payload)
	if err != nil {
		return nil, fmt.Errorf("notion create page: %w", err)
	}

	var page notionPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("notion create page: decode: %w", err)
	}
	return &models.RemotePageRef{ID: page.ID, URL: page.URL}, nil
}

// UpdatePage overwrites the page: properties are patched, existing content
// blocks are removed, and the new blocks appended.
func (n *NotionBackend) UpdatePage(ctx context.Context, ref models.RemotePageRef, props core.PageProperties, blocks []core.Block) error {
	if _, err := n.do(ctx, http.MethodPatch, "/pages/"+ref.ID, map[string]any{
		"properties": encodeProperties(props),
	}); err != nil {
		return fmt.Errorf("notion update page %s: %w", ref.ID, err)
	}
	if err := n.DeleteBlocks(ctx, ref); err != nil {
		return err
	}
	if _, err := n.do(ctx, http.MethodPatch, "/blocks/"+ref.ID+"/children", map[string]any{
		"children": encodeBlocks(blocks),
	}); err != nil {
		return fmt.Errorf("notion append blocks %s: %w", ref.ID, err)
	}
	return nil
}

// DeleteBlocks removes all direct children of a page.
func (n *NotionBackend) DeleteBlocks(ctx context.Context, ref models.RemotePageRef) error {
	var cursor string
	for {
		endpoint := fmt.Sprintf("/blocks/%s/children?page_size=100", ref.ID)
		if cursor != "" {
			endpoint += "&start_cursor=" + cursor
		}
		raw, err := n.do(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("notion list blocks %s: %w", ref.ID, err)
		}

		var resp notionBlockListResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("notion list blocks %s: decode: %w", ref.ID, err)
		}
		for _, b := range resp.Results {
			if _, err := n.do(ctx, http.MethodDelete, "/blocks/"+b.ID, nil); err != nil {
				return fmt.Errorf("notion delete block %s: %w", b.ID, err)
			}
		}
		if !resp.HasMore {
			return nil
		}
		cursor = resp.NextCursor
	}
}

func (n *NotionBackend) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, notionAPIBase+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Notion-Version", notionVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(data))
	}
	return data, nil
}

// encodeProperties maps the neutral property struct onto Notion's schema.
func encodeProperties(props core.PageProperties) map[string]any {
	out := map[string]any{
		propTitle: map[string]any{
			"title": []any{richText(props.Title)},
		},
	}
	if props.SourceURL != "" {
		out[propSource] = map[string]any{"url": props.SourceURL}
	}
	if props.Backend != "" {
		out[propBackend] = map[string]any{"select": map[string]any{"name": props.Backend}}
	}
	if props.Family != "" {
		out[propFamily] = map[string]any{"select": map[string]any{"name": props.Family}}
	}
	if props.Sentiment != "" {
		out[propSentiment] = map[string]any{"select": map[string]any{"name": props.Sentiment}}
	}
	if len(props.Topics) > 0 {
		var opts []any
		for _, t := range props.Topics {
			opts = append(opts, map[string]any{"name": t})
		}
		out[propTopics] = map[string]any{"multi_select": opts}
	}
	return out
}

func encodeBlocks(blocks []core.Block) []any {
	out := make([]any, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case core.BlockHeading:
			out = append(out, map[string]any{
				"object":    "block",
				"type":      "heading_2",
				"heading_2": map[string]any{"rich_text": []any{richText(b.Text)}},
			})
		case core.BlockBullet:
			out = append(out, map[string]any{
				"object":             "block",
				"type":               "bulleted_list_item",
				"bulleted_list_item": map[string]any{"rich_text": []any{richText(b.Text)}},
			})
		case core.BlockDivider:
			out = append(out, map[string]any{
				"object":  "block",
				"type":    "divider",
				"divider": map[string]any{},
			})
		default:
			out = append(out, map[string]any{
				"object":    "block",
				"type":      "paragraph",
				"paragraph": map[string]any{"rich_text": []any{richText(b.Text)}},
			})
		}
	}
	return out
}

func richText(s string) map[string]any {
	return map[string]any{
		"type": "text",
		"text": map[string]any{"content": s},
	}
}

type notionPage struct {
	ID         string                        `json:"id"`
	URL        string                        `json:"url"`
	Properties map[string]notionPropertyView `json:"properties"`
}

type notionPropertyView struct {
	Title []struct {
		PlainText string `json:"plain_text"`
	} `json:"title"`
	URL string `json:"url"`
}

func (p notionPage) title() string {
	tp, ok := p.Properties[propTitle]
	if !ok || len(tp.Title) == 0 {
		return ""
	}
	return tp.Title[0].PlainText
}

func (p notionPage) sourceURL() string {
	return p.Properties[propSource].URL
}

type notionQueryResponse struct {
	Results    []notionPage `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

type notionBlockListResponse struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

func truncateBody(data []byte) string {
	const max = 300
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
