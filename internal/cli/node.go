package cli

import (
	"log/slog"

	"github.com/roach88/chainfile/internal/config"
	"github.com/roach88/chainfile/internal/ledger"
	"github.com/roach88/chainfile/internal/metrics"
)

// newNodeClient builds the RPC client. Endpoint and TLS material come from
// the configuration; anything unset falls back to the node's own
// config.yaml under the node root.
func newNodeClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ledger.Client, error) {
	url, cert, key, ca := cfg.NodeURL, cfg.CertFile, cfg.KeyFile, cfg.CAFile
	if url == "" || cert == "" || key == "" || ca == "" {
		root, err := cfg.ResolvedNodeRoot()
		if err != nil {
			return nil, err
		}
		node, err := ledger.LoadNodeConfig(root)
		if err != nil {
			return nil, err
		}
		url = fallback(url, node.URL())
		cert = fallback(cert, node.CertFile())
		key = fallback(key, node.KeyFile())
		ca = fallback(ca, node.CAFile())
	}

	tlsConfig, err := ledger.TLSConfig(cert, key, ca)
	if err != nil {
		return nil, err
	}

	retries := cfg.MaxRetries
	if retries == 0 {
		retries = -1
	}
	logger.Debug("node client", "url", url, "cert", cert, "ca", ca)
	return ledger.NewClient(ledger.ClientOptions{
		BaseURL:    url,
		TLS:        tlsConfig,
		Timeout:    cfg.RequestTimeout,
		MaxRetries: retries,
		BackoffMin: cfg.BackoffMin,
		BackoffMax: cfg.BackoffMax,
		RateLimit:  cfg.RateLimit,
		Logger:     logger,
		Metrics:    m,
	})
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
