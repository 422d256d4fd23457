package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sr-chatbot/internal/statement"
)

const pdfMimeType = "application/pdf"

type driveFile struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type fileMetadata struct {
	Name    string   `json:"name"`
	Parents []string `json:"parents,omitempty"`
}

func (c *Client) parents() []string {
	if c.folderID == "" {
		return nil
	}
	return []string{c.folderID}
}

// Copy duplicates templateID into the working folder under name.
func (c *Client) Copy(ctx context.Context, templateID, name string) (string, error) {
	ctx, span := tracer.Start(ctx, "Drive.Copy")
	defer span.End()

	body, err := json.Marshal(fileMetadata{Name: name, Parents: c.parents()})
	if err != nil {
		return "", fmt.Errorf("google: marshal copy request: %w", err)
	}
	u := fmt.Sprintf("%s/files/%s/copy?supportsAllDrives=true", c.driveBase, url.PathEscape(templateID))
	raw, err := c.do(ctx, request{method: http.MethodPost, url: u, body: body, contentType: "application/json"})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("google: copy template: %w", err)
	}
	var f driveFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("google: decode copy response: %w", err)
	}
	if f.ID == "" {
		return "", fmt.Errorf("google: copy response has no file id")
	}
	span.SetAttributes(attribute.String("drive.file_id", f.ID))
	return f.ID, nil
}

// exportQuery hides gridlines, sheet names and page numbers and fits the
// tab to the page width.
func exportQuery(gid int64) string {
	q := url.Values{}
	q.Set("format", "pdf")
	q.Set("size", "letter")
	q.Set("portrait", "true")
	q.Set("fitw", "true")
	q.Set("sheetnames", "false")
	q.Set("printtitle", "false")
	q.Set("pagenumbers", "false")
	q.Set("gridlines", "false")
	q.Set("fzr", "false")
	q.Set("fzc", "false")
	q.Set("gid", strconv.FormatInt(gid, 10))
	return q.Encode()
}

// ExportAsDocument renders tab of docID as PDF bytes.
func (c *Client) ExportAsDocument(ctx context.Context, docID, tab string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Drive.Export")
	defer span.End()

	gid, ok, err := c.sheetID(ctx, docID, tab)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("google: export: %w", statement.ErrTableNotFound)
	}
	u := fmt.Sprintf("%s/%s/export?%s", c.exportBase, url.PathEscape(docID), exportQuery(gid))
	pdf, err := c.do(ctx, request{method: http.MethodGet, url: u})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("google: export %q: %w", tab, err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("google: export %q returned no content", tab)
	}
	span.SetAttributes(attribute.Int("export.bytes", len(pdf)))
	return pdf, nil
}

// multipartBody builds a related-multipart upload: JSON metadata then the
// file content.
func multipartBody(meta fileMetadata, data []byte, mimeType string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", err
	}
	mh := textproto.MIMEHeader{}
	mh.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := w.CreatePart(mh)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(metaJSON); err != nil {
		return nil, "", err
	}

	fh := textproto.MIMEHeader{}
	fh.Set("Content-Type", mimeType)
	part, err = w.CreatePart(fh)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "multipart/related; boundary=" + w.Boundary(), nil
}

// Store uploads data as a PDF into the working folder. Rate limiting,
// server errors and network failures are retried with backoff.
func (c *Client) Store(ctx context.Context, data []byte, filename string) (string, error) {
	ctx, span := tracer.Start(ctx, "Drive.Upload")
	defer span.End()

	body, contentType, err := multipartBody(fileMetadata{Name: filename, Parents: c.parents()}, data, pdfMimeType)
	if err != nil {
		return "", fmt.Errorf("google: build upload body: %w", err)
	}
	u := c.uploadBase + "/files?uploadType=multipart&supportsAllDrives=true"
	raw, err := c.do(ctx, request{method: http.MethodPost, url: u, body: body, contentType: contentType})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("google: upload %q: %w", filename, err)
	}
	var f driveFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("google: decode upload response: %w", err)
	}
	if f.ID == "" {
		return "", fmt.Errorf("google: upload response has no file id")
	}
	c.logger.Info("google: uploaded document", zap.String("file_id", f.ID), zap.String("name", filename))
	return f.ID, nil
}

// ShareableLink grants anyone-with-the-link read access and returns the
// view URL.
func (c *Client) ShareableLink(ctx context.Context, storedID string) (string, error) {
	body, err := json.Marshal(map[string]string{"role": "reader", "type": "anyone"})
	if err != nil {
		return "", err
	}
	u := fmt.Sprintf("%s/files/%s/permissions?supportsAllDrives=true", c.driveBase, url.PathEscape(storedID))
	if _, err := c.do(ctx, request{method: http.MethodPost, url: u, body: body, contentType: "application/json"}); err != nil {
		return "", fmt.Errorf("google: share %s: %w", storedID, err)
	}
	return "https://drive.google.com/file/d/" + storedID + "/view", nil
}

// Discard moves docID to the trash. A file that no longer exists is not
// an error.
func (c *Client) Discard(ctx context.Context, docID string) error {
	body, err := json.Marshal(map[string]bool{"trashed": true})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/files/%s?supportsAllDrives=true", c.driveBase, url.PathEscape(docID))
	_, err = c.do(ctx, request{method: http.MethodPatch, url: u, body: body, contentType: "application/json"})
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("google: trash %s: %w", docID, err)
	}
	return nil
}

var (
	_ statement.TabularReader    = (*Client)(nil)
	_ statement.DocumentRenderer = (*Client)(nil)
)
