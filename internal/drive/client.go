package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
)

const folderMimeType = "application/vnd.google-apps.folder"

// fileFields is what we ask Drive to return for file objects.
const fileFields = "id, name, size, md5Checksum, modifiedTime"

// File is the subset of Drive file metadata the sync layer uses.
type File struct {
	ID           string
	Name         string
	Size         int64
	MD5          string
	ModifiedTime string
}

// Client wraps the Drive v3 API.
type Client struct {
	svc    *gdrive.Service
	logger *slog.Logger
}

// NewClient wraps an authenticated Drive service.
func NewClient(svc *gdrive.Service, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{svc: svc, logger: logger}
}

// EnsureFolder returns the ID of the named folder in the Drive root,
// creating it when absent.
func (c *Client) EnsureFolder(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(name), folderMimeType)
	list, err := c.svc.Files.List().Q(query).Fields("files(id, name)").
		PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up drive folder %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	folder, err := c.svc.Files.Create(&gdrive.File{
		Name:     name,
		MimeType: folderMimeType,
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create drive folder %q: %w", name, err)
	}
	c.logger.Info("created drive folder", "name", name, "id", folder.Id)
	return folder.Id, nil
}

// List returns the files inside a folder.
func (c *Client) List(ctx context.Context, folderID string) ([]*File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))
	var files []*File
	call := c.svc.Files.List().Q(query).
		Fields("nextPageToken, files(" + fileFields + ")").
		PageSize(100)
	err := call.Pages(ctx, func(page *gdrive.FileList) error {
		for _, f := range page.Files {
			files = append(files, fromAPI(f))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list drive folder: %w", err)
	}
	return files, nil
}

// Upload creates a new file inside a folder.
func (c *Client) Upload(ctx context.Context, folderID, name string, r io.Reader) (*File, error) {
	f, err := c.svc.Files.Create(&gdrive.File{
		Name:    name,
		Parents: []string{folderID},
	}).Media(r).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return fromAPI(f), nil
}

// Update replaces an existing file's content.
func (c *Client) Update(ctx context.Context, fileID string, r io.Reader) (*File, error) {
	f, err := c.svc.Files.Update(fileID, &gdrive.File{}).
		Media(r).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update drive file: %w", err)
	}
	return fromAPI(f), nil
}

// Download streams a file's content into w.
func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) error {
	resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("failed to download drive file: %w", err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read drive file: %w", err)
	}
	return nil
}

// Delete removes a file.
func (c *Client) Delete(ctx context.Context, fileID string) error {
	if err := c.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete drive file: %w", err)
	}
	return nil
}

// About returns the account email and storage usage, for `drive test`.
func (c *Client) About(ctx context.Context) (email string, usedBytes, limitBytes int64, err error) {
	about, err := c.svc.About.Get().Fields("user, storageQuota").Context(ctx).Do()
	if err != nil {
		return "", 0, 0, fmt.Errorf("drive connectivity check failed: %w", err)
	}
	if about.User != nil {
		email = about.User.EmailAddress
	}
	if about.StorageQuota != nil {
		usedBytes = about.StorageQuota.Usage
		limitBytes = about.StorageQuota.Limit
	}
	return email, usedBytes, limitBytes, nil
}

func fromAPI(f *gdrive.File) *File {
	return &File{
		ID:           f.Id,
		Name:         f.Name,
		Size:         f.Size,
		MD5:          f.Md5Checksum,
		ModifiedTime: f.ModifiedTime,
	}
}

// escapeQuery escapes single quotes in Drive query literals.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, `'`, `\'`)
}

// FolderFromURL accepts a Drive folder URL or a bare folder ID and
// returns the ID.
func FolderFromURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty drive folder")
	}
	if !strings.Contains(s, "/") {
		return s, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid drive folder url: %w", err)
	}
	// https://drive.google.com/drive/folders/<id>?... or .../u/0/folders/<id>
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "folders" && i+1 < len(parts) {
			return parts[i+1], nil
		}
	}
	if id := u.Query().Get("id"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no folder id in url: %s", s)
}
