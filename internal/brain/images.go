package brain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ankittk/postcraft/internal/generate"
	"github.com/ankittk/postcraft/pkg/models"
)

// DallE generates images with DALL-E 3 and keeps a local copy under Dir.
type DallE struct {
	client *openai.Client
	Dir    string
	HTTP   *http.Client
}

// NewDallE builds an image client. An empty apiKey falls back to OPENAI_API_KEY.
func NewDallE(apiKey, dir string) (*DallE, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &DallE{
		client: &client,
		Dir:    dir,
		HTTP:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// CreateImage implements generate.ImageGenerator. The image is saved as <Dir>/<channel>_<uuid>.png.
func (d *DallE) CreateImage(ctx context.Context, prompt string, channel models.Channel) (generate.Image, error) {
	slog.Info("generating image", "channel", channel)
	resp, err := d.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModelDallE3,
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		Quality:        openai.ImageGenerateParamsQualityStandard,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return generate.Image{}, fmt.Errorf("dall-e: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return generate.Image{}, errors.New("dall-e: no image returned")
	}
	url := resp.Data[0].URL
	path := filepath.Join(d.Dir, fmt.Sprintf("%s_%s.png", strings.ToLower(string(channel)), uuid.NewString()))
	if err := download(ctx, d.HTTP, url, path); err != nil {
		return generate.Image{}, fmt.Errorf("save image: %w", err)
	}
	return generate.Image{URL: url, Path: path}, nil
}

func download(ctx context.Context, client *http.Client, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("GET image: status %d", resp.StatusCode)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
