package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// ContentReader loads the readable text of a single document.
type ContentReader interface {
	Read(ctx context.Context, documentURL string) (string, error)
}

const maxPageBytes = 5 << 20

// PageReader downloads an HTML page and reduces it to markdown.
type PageReader struct {
	client *http.Client
}

// NewPageReader creates a PageReader.
func NewPageReader(timeout time.Duration) *PageReader {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &PageReader{client: &http.Client{Timeout: timeout}}
}

// Read fetches documentURL and extracts its main content.
func (r *PageReader) Read(ctx context.Context, documentURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return "", fmt.Errorf("create page request: %w", err)
	}
	req.Header.Set("User-Agent", "research-bot/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("page request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("page", resp); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read page body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/plain") || strings.HasPrefix(contentType, "text/markdown") {
		return strings.TrimSpace(string(data)), nil
	}
	return ExtractMarkdown(data, documentURL), nil
}

// ExtractMarkdown runs readability over an HTML document and converts the
// article to markdown. When readability finds no article the visible text of
// the whole page is returned.
func ExtractMarkdown(data []byte, pageURL string) string {
	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err == nil && article.Node != nil {
		md, mdErr := htmltomarkdown.ConvertNode(article.Node)
		if mdErr == nil {
			if text := strings.TrimSpace(string(md)); text != "" {
				return text
			}
		}
	}

	node, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return visibleText(node)
}

func visibleText(root *html.Node) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(parts, "\n")
}

const defaultMistralOCRURL = "https://api.mistral.ai/v1/ocr"

// MistralOCR extracts the text of PDF documents with the Mistral OCR API.
type MistralOCR struct {
	apiKey string
	apiURL string
	client *http.Client
}

// NewMistralOCR creates an OCR reader.
func NewMistralOCR(apiKey, apiURL string) (*MistralOCR, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("MISTRAL_API_KEY is not set")
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultMistralOCRURL
	}
	return &MistralOCR{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// Read returns the markdown of every page of the PDF at documentURL.
func (m *MistralOCR) Read(ctx context.Context, documentURL string) (string, error) {
	documentURL = strings.Replace(documentURL, "http://", "https://", 1)

	payload, err := json.Marshal(ocrRequest{
		Model:    "mistral-ocr-latest",
		Document: ocrDocument{Type: "document_url", DocumentURL: documentURL},
	})
	if err != nil {
		return "", fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("mistral-ocr", resp); err != nil {
		return "", err
	}

	var decoded ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}

	var b strings.Builder
	for _, page := range decoded.Pages {
		fmt.Fprintf(&b, "- Page %d -\n%s\n\n", page.Index, page.Markdown)
	}
	return strings.TrimSpace(b.String()), nil
}
