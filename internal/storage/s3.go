// Package storage keeps uploaded documents, their extracted text and
// records, and generation artifacts in an S3-compatible bucket.
//
// Layout:
//
//	documents/<id>/document.json          document record (without text)
//	documents/<id>/text.txt               extracted text
//	documents/<id>/original/<filename>    uploaded bytes
//	generations/<id>/generation.json      generation record
//	generations/<id>/selenium.py          primary script
//	generations/<id>/playwright.py        alternate script
//	generations/<id>/raw.txt              unparsed model response
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "scriptforge"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Client wraps the MinIO/S3 client.
type Client struct {
	minioClient *minio.Client
	bucket      string
}

// New creates a new S3/MinIO client.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

const (
	documentsPrefix   = "documents"
	generationsPrefix = "generations"
	recordFile        = "document.json"
	textFile          = "text.txt"
	generationFile    = "generation.json"
	primaryFile       = "selenium.py"
	alternateFile     = "playwright.py"
	rawFile           = "raw.txt"
)

// DocumentPrefix returns the prefix holding every object of a document.
func DocumentPrefix(id string) string {
	return path.Join(documentsPrefix, id) + "/"
}

// OriginalKey returns the object key of an uploaded file.
// Only the base name of filename is kept.
func OriginalKey(id, filename string) string {
	return path.Join(documentsPrefix, id, "original", path.Base(strings.ReplaceAll(filename, `\`, "/")))
}

// GenerationPrefix returns the prefix holding a generation's artifacts.
func GenerationPrefix(id string) string {
	return path.Join(generationsPrefix, id) + "/"
}

func (c *Client) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.minioClient.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// get reads an object. Missing objects yield models.ErrNotFound.
func (c *Client) get(ctx context.Context, key string) ([]byte, error) {
	object, err := c.minioClient.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, notFound(err))
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, notFound(err))
	}
	return data, nil
}

func notFound(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errors.Join(models.ErrNotFound, err)
	}
	return err
}

func (c *Client) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return c.put(ctx, key, data, "application/json")
}

// PutOriginal stores the uploaded bytes of a document.
func (c *Client) PutOriginal(ctx context.Context, id, filename string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.put(ctx, OriginalKey(id, filename), data, contentType)
}

// GetOriginal reads the uploaded bytes of a document.
func (c *Client) GetOriginal(ctx context.Context, id, filename string) ([]byte, error) {
	return c.get(ctx, OriginalKey(id, filename))
}

// PutDocument writes the document record. Text is stored separately.
func (c *Client) PutDocument(ctx context.Context, doc models.Document) error {
	doc.Text = ""
	return c.putJSON(ctx, path.Join(documentsPrefix, doc.ID, recordFile), doc)
}

// GetDocument reads a document record without its text.
func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	data, err := c.get(ctx, path.Join(documentsPrefix, id, recordFile))
	if err != nil {
		return nil, err
	}

	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
	}
	return &doc, nil
}

// PutText stores the extracted text of a document.
func (c *Client) PutText(ctx context.Context, id, text string) error {
	return c.put(ctx, path.Join(documentsPrefix, id, textFile), []byte(text), "text/plain; charset=utf-8")
}

// GetText reads the extracted text of a document.
func (c *Client) GetText(ctx context.Context, id string) (string, error) {
	data, err := c.get(ctx, path.Join(documentsPrefix, id, textFile))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListDocuments returns every document record, newest first.
func (c *Client) ListDocuments(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document

	objectCh := c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    documentsPrefix + "/",
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		if path.Base(object.Key) != recordFile {
			continue
		}

		id := path.Base(path.Dir(object.Key))
		doc, err := c.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// DeleteDocument removes every object of a document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.removePrefix(ctx, DocumentPrefix(id))
}

func (c *Client) removePrefix(ctx context.Context, prefix string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objectsCh := make(chan minio.ObjectInfo)
	listErr := make(chan error, 1)

	go func() {
		defer close(objectsCh)
		for object := range c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if object.Err != nil {
				listErr <- object.Err
				return
			}
			select {
			case objectsCh <- object:
			case <-ctx.Done():
				return
			}
		}
	}()

	for result := range c.minioClient.RemoveObjects(ctx, c.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if result.Err != nil {
			return fmt.Errorf("failed to remove %s: %w", result.ObjectName, result.Err)
		}
	}

	select {
	case err := <-listErr:
		return fmt.Errorf("failed to list objects: %w", err)
	default:
		return nil
	}
}

// PutGeneration stores a generation record and its scripts.
func (c *Client) PutGeneration(ctx context.Context, gen models.Generation) error {
	prefix := GenerationPrefix(gen.ID)

	files := []struct {
		name    string
		content string
	}{
		{primaryFile, gen.Scripts.Primary},
		{alternateFile, gen.Scripts.Alternate},
		{rawFile, gen.Scripts.Raw},
	}
	for _, f := range files {
		if f.content == "" {
			continue
		}
		if err := c.put(ctx, prefix+f.name, []byte(f.content), "text/plain; charset=utf-8"); err != nil {
			return err
		}
	}

	record := gen
	record.Scripts = models.ScriptPair{}
	return c.putJSON(ctx, prefix+generationFile, record)
}

// GetGeneration reads a generation with its scripts.
func (c *Client) GetGeneration(ctx context.Context, id string) (*models.Generation, error) {
	prefix := GenerationPrefix(id)

	data, err := c.get(ctx, prefix+generationFile)
	if err != nil {
		return nil, err
	}
	var gen models.Generation
	if err := json.Unmarshal(data, &gen); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generation %s: %w", id, err)
	}

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{primaryFile, &gen.Scripts.Primary},
		{alternateFile, &gen.Scripts.Alternate},
		{rawFile, &gen.Scripts.Raw},
	} {
		content, err := c.get(ctx, prefix+f.name)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		*f.dst = string(content)
	}

	return &gen, nil
}
