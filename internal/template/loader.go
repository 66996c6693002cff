package template

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Document is a decoded ARM template or parameters file.
type Document map[string]any

// Load reads a JSON document from path, or from url when path is empty.
func Load(ctx context.Context, path, url string) (Document, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case path != "":
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case url != "":
		data, err = fetch(ctx, url)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("neither file nor url given")
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode template document: %w", err)
	}
	return doc, nil
}

// LoadParameters loads a parameters file and unwraps its top-level
// "parameters" object when present.
func LoadParameters(ctx context.Context, path, url string) (Document, error) {
	doc, err := Load(ctx, path, url)
	if err != nil {
		return nil, err
	}
	if inner, ok := doc["parameters"].(map[string]any); ok {
		return inner, nil
	}
	return doc, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: response failed with status code %d", url, resp.StatusCode)
	}
	return body, nil
}
