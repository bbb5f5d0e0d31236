package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"
)

// DefaultMinInterval keeps requests under Notion's average limit of three
// requests per second per integration.
const DefaultMinInterval = 350 * time.Millisecond

// NotionService is the part of the Notion API the syncer needs.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	// ArchivePage moves a page to the trash.
	ArchivePage(ctx context.Context, pageID string) error
}

// NotionClient implements NotionService over the Notion REST API. Calls are
// paced by a token bucket so bulk syncs stay under the rate limit.
type NotionClient struct {
	client  *notionapi.Client
	limiter *rate.Limiter
}

// ClientOption configures a NotionClient.
type ClientOption func(*NotionClient)

// WithMinInterval overrides DefaultMinInterval. Zero disables pacing.
func WithMinInterval(d time.Duration) ClientOption {
	return func(n *NotionClient) {
		if d <= 0 {
			n.limiter = nil
			return
		}
		n.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewNotionClient creates a client authenticated with an integration token.
func NewNotionClient(token string, opts ...ClientOption) *NotionClient {
	n := &NotionClient{
		client:  notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// wait blocks until the limiter allows the next request, or ctx is done.
func (n *NotionClient) wait(ctx context.Context) error {
	if n.limiter == nil {
		return nil
	}
	return n.limiter.Wait(ctx)
}

// CreatePage adds a page with the given properties to a database.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if err := n.wait(ctx); err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}

	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

// QueryDatabase fetches one page of database results.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if err := n.wait(ctx); err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}

	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase %s: %w", databaseID, err)
	}
	return resp, nil
}

// ArchivePage sets archived=true on a page.
func (n *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	if err := n.wait(ctx); err != nil {
		return fmt.Errorf("ArchivePage: %w", err)
	}

	_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Archived: true})
	if err != nil {
		return fmt.Errorf("ArchivePage %s: %w", pageID, err)
	}
	return nil
}

var _ NotionService = (*NotionClient)(nil)
