package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// Timeouts for individual Elasticsearch calls.
const (
	defaultUpsertTimeout = 10 * time.Second
	defaultExistsTimeout = 5 * time.Second
	defaultPingTimeout   = 5 * time.Second
)

// ElasticsearchConfig carries connection settings for the search cluster.
type ElasticsearchConfig struct {
	Addresses []string
	APIKey    string
	Index     string
}

// Elasticsearch implements Indexer against an Elasticsearch index.
type Elasticsearch struct {
	client *es.Client
	index  string
	logger *zap.Logger
}

// NewElasticsearch builds the adapter. The index name must be set; documents
// are written with explicit ids so writes are idempotent.
func NewElasticsearch(cfg ElasticsearchConfig, logger *zap.Logger) (*Elasticsearch, error) {
	if cfg.Index == "" {
		return nil, errors.New("index.name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Elasticsearch{client: client, index: cfg.Index, logger: logger}, nil
}

// Upsert indexes doc under id, overwriting any previous version.
func (e *Elasticsearch) Upsert(ctx context.Context, id string, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultUpsertTimeout)
	defer cancel()

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %q: %w", id, err)
	}
	res, err := e.client.Index(
		e.index,
		bytes.NewReader(body),
		e.client.Index.WithContext(ctx),
		e.client.Index.WithDocumentID(id),
	)
	if err != nil {
		return fmt.Errorf("index document %q: %w", id, err)
	}
	defer e.closeResponse(res, "Upsert", id)

	if res.IsError() {
		return fmt.Errorf("index document %q: %s", id, res.String())
	}
	return nil
}

// Exists probes for a stored document by id.
func (e *Elasticsearch) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultExistsTimeout)
	defer cancel()

	res, err := e.client.Exists(
		e.index,
		id,
		e.client.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("check document %q: %w", id, err)
	}
	defer e.closeResponse(res, "Exists", id)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("check document %q: unexpected status %d", id, res.StatusCode)
	}
}

// Ping verifies the cluster is reachable.
func (e *Elasticsearch) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer e.closeResponse(res, "Ping", "")

	if res.IsError() {
		return fmt.Errorf("ping elasticsearch: %s", res.String())
	}
	return nil
}

func (e *Elasticsearch) closeResponse(res *esapi.Response, operation, docID string) {
	if err := res.Body.Close(); err != nil {
		e.logger.Error("failed to close response body",
			zap.String("operation", operation),
			zap.String("doc_id", docID),
			zap.Error(err),
		)
	}
}
