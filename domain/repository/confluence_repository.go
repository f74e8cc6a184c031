package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Songmu/retry"
	goconfluence "github.com/virtomize/confluence-go-api"
)

type confluencePageCreator interface {
	CreateContent(c *goconfluence.Content) (*goconfluence.Content, error)
}

// ConfluenceRepository は統計レポートを Confluence のページとして書き出す
type ConfluenceRepository struct {
	client     confluencePageCreator
	siteURL    string
	spaceKey   string
	ancestorID string
	retryCount uint
	retryWait  time.Duration
}

func NewConfluenceRepository(domain, user, password, spaceKey, ancestorID string) (*ConfluenceRepository, error) {
	siteURL := fmt.Sprintf("https://%s.atlassian.net/wiki", domain)
	api, err := goconfluence.NewAPI(siteURL+"/rest/api", user, password)
	if err != nil {
		return nil, fmt.Errorf("failed to create confluence api: %w", err)
	}
	return newConfluenceRepository(api, siteURL, spaceKey, ancestorID), nil
}

func newConfluenceRepository(client confluencePageCreator, siteURL, spaceKey, ancestorID string) *ConfluenceRepository {
	return &ConfluenceRepository{
		client:     client,
		siteURL:    siteURL,
		spaceKey:   spaceKey,
		ancestorID: ancestorID,
		retryCount: 3,
		retryWait:  2 * time.Second,
	}
}

func (c *ConfluenceRepository) reportPage(title, body string) *goconfluence.Content {
	page := &goconfluence.Content{
		Type:  "page",
		Title: title,
		Body: goconfluence.Body{
			Storage: goconfluence.Storage{
				Value:          body,
				Representation: "storage",
			},
		},
		Version: &goconfluence.Version{Number: 1},
	}
	if c.ancestorID != "" {
		page.Ancestors = []goconfluence.Ancestor{{ID: c.ancestorID}}
	}
	if c.spaceKey != "" {
		page.Space = &goconfluence.Space{Key: c.spaceKey}
	}
	return page
}

// ExportReport はページを作成し、閲覧用のURLを返す
func (c *ConfluenceRepository) ExportReport(ctx context.Context, title, body string) (string, error) {
	page := c.reportPage(title, body)
	var created *goconfluence.Content
	err := retry.Retry(c.retryCount, c.retryWait, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := c.client.CreateContent(page)
		if err != nil {
			slog.Warn("CreateContent", slog.String("title", title), slog.Any("err", err))
			return err
		}
		created = res
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create confluence page %q: %w", title, err)
	}
	return fmt.Sprintf("%s/pages/viewpage.action?pageId=%s", c.siteURL, created.ID), nil
}
