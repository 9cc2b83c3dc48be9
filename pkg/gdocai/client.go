package gdocai

import (
	"context"
	"fmt"
	"os"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// ProcessDocument sends document bytes to Google Document AI for processing
// and returns the raw Document proto response
func ProcessDocument(ctx context.Context, content []byte, mimeType string, cfg *Config) (*documentaipb.Document, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)

	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	defer client.Close()

	req := &documentaipb.ProcessRequest{
		Name: processorName(cfg),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mimeType,
			},
		},
		SkipHumanReview: true,
	}

	resp, err := client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}
	return resp.Document, nil
}

func processorName(cfg *Config) string {
	return fmt.Sprintf(
		"projects/%s/locations/%s/processors/%s",
		cfg.ProjectID, cfg.Location, cfg.ProcessorID,
	)
}
