package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// GDriveClient adapts the Drive v3 API to the source interface. Folder
// "paths" for this backend are folder IDs, and file refs are file IDs.
type GDriveClient struct {
	svc *drive.Service
	log *zap.SugaredLogger
}

var _ core.SourceClient = (*GDriveClient)(nil)

func NewGDriveClient(ctx context.Context, credentialsFile string, log *zap.SugaredLogger) (*GDriveClient, error) {
	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &GDriveClient{svc: svc, log: log}, nil
}

func (g *GDriveClient) Backend() models.Backend { return models.BackendGDrive }

// ListFolder lists the non-trashed children of a folder ID, paging until the
// API stops returning a next page token.
func (g *GDriveClient) ListFolder(ctx context.Context, folderID string) ([]models.RawFileEntry, error) {
	var entries []models.RawFileEntry
	pageToken := ""

	for {
		call := g.svc.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
			Fields("nextPageToken, files(id, name, mimeType, size, modifiedTime, md5Checksum)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("drive list %s: %w", folderID, err)
		}

		for _, f := range page.Files {
			modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
			entries = append(entries, models.RawFileEntry{
				Backend:  models.BackendGDrive,
				Name:     f.Name,
				Path:     f.Id,
				Size:     f.Size,
				Modified: modified,
				IsFolder: f.MimeType == "application/vnd.google-apps.folder",
				Revision: f.Md5Checksum,
			})
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return entries, nil
		}
	}
}

// Download fetches the file content by ID. Google-native documents have no
// byte content and are rejected upstream by classification.
func (g *GDriveClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := g.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("drive download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("drive download %s: read: %w", fileID, err)
	}
	return data, nil
}

// ShareLink grants anyone-with-link reader access and returns the view link.
func (g *GDriveClient) ShareLink(ctx context.Context, fileID string) (string, error) {
	_, err := g.svc.Permissions.Create(fileID, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		// The permission may already exist; still try to read the link.
		g.log.Debugw("drive permission create failed", "file", fileID, "err", err)
	}

	f, err := g.svc.Files.Get(fileID).Fields("webViewLink").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive share %s: %w", fileID, err)
	}
	if f.WebViewLink == "" {
		return "", fmt.Errorf("drive share %s: no web view link", fileID)
	}
	return f.WebViewLink, nil
}
