package openai

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"github.com/poiesic/kbase/ai"
)

// ErrEmptyProbe is returned when a probe embedding comes back without values.
var ErrEmptyProbe = errors.New("probe embedding is empty")

const probeText = "kbase embedding probe"

// Strategies returns the resolver strategies for a configuration, in order:
// the primary model with default settings, the primary model with TLS
// verification disabled, then every alternative model with default settings.
// Each strategy only succeeds once a probe embedding has round-tripped.
func Strategies(config *ai.Config) []ai.Strategy {
	models := config.EmbeddingModels
	if len(models) == 0 {
		return nil
	}

	strategies := []ai.Strategy{
		strategy(config, models[0], models[0], nil),
		strategy(config, models[0]+"/relaxed-tls", models[0], relaxedClient()),
	}
	for _, model := range models[1:] {
		strategies = append(strategies, strategy(config, model, model, nil))
	}
	return strategies
}

func strategy(config *ai.Config, name, model string, httpClient *http.Client) ai.Strategy {
	return ai.Strategy{
		Name: name,
		Build: func(ctx context.Context) (ai.Embedder, error) {
			embedder, err := newEmbedder(config, model, httpClient)
			if err != nil {
				return nil, err
			}
			if err := probe(ctx, embedder, config); err != nil {
				return nil, err
			}
			return embedder, nil
		},
	}
}

func probe(ctx context.Context, embedder *Embedder, config *ai.Config) error {
	if config.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ProbeTimeout)
		defer cancel()
	}

	vector, err := embedder.EmbedText(ctx, probeText)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	if len(vector) == 0 {
		return ErrEmptyProbe
	}
	return nil
}

// relaxedClient skips certificate verification for self-signed local servers.
func relaxedClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	return &http.Client{Transport: transport}
}
