package ledger

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultRPCPort is the full node RPC port used when config.yaml omits it.
const DefaultRPCPort = 8555

// NodeConfig is the subset of a node's config.yaml needed to reach its RPC
// endpoint.
type NodeConfig struct {
	Root         string `yaml:"-"`
	SelfHostname string `yaml:"self_hostname"`
	FullNode     struct {
		RPCPort int `yaml:"rpc_port"`
		SSL     struct {
			PrivateCrt string `yaml:"private_crt"`
			PrivateKey string `yaml:"private_key"`
		} `yaml:"ssl"`
	} `yaml:"full_node"`
	PrivateSSLCA struct {
		Crt string `yaml:"crt"`
	} `yaml:"private_ssl_ca"`
}

// LoadNodeConfig reads <root>/config/config.yaml and fills defaults for the
// fields it leaves empty. root is a network directory such as
// ~/.chia/mainnet.
func LoadNodeConfig(root string) (*NodeConfig, error) {
	path := filepath.Join(root, "config", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read node config: %w", err)
	}

	cfg := &NodeConfig{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse node config %s: %w", path, err)
	}
	cfg.Root = root
	cfg.applyDefaults()
	return cfg, nil
}

func (c *NodeConfig) applyDefaults() {
	if c.SelfHostname == "" {
		c.SelfHostname = "localhost"
	}
	if c.FullNode.RPCPort == 0 {
		c.FullNode.RPCPort = DefaultRPCPort
	}
	if c.FullNode.SSL.PrivateCrt == "" {
		c.FullNode.SSL.PrivateCrt = "config/ssl/full_node/private_full_node.crt"
	}
	if c.FullNode.SSL.PrivateKey == "" {
		c.FullNode.SSL.PrivateKey = "config/ssl/full_node/private_full_node.key"
	}
	if c.PrivateSSLCA.Crt == "" {
		c.PrivateSSLCA.Crt = "config/ssl/ca/private_ca.crt"
	}
}

// URL returns the RPC base URL.
func (c *NodeConfig) URL() string {
	return fmt.Sprintf("https://%s:%d", c.SelfHostname, c.FullNode.RPCPort)
}

// CertFile returns the absolute client certificate path.
func (c *NodeConfig) CertFile() string {
	return c.resolve(c.FullNode.SSL.PrivateCrt)
}

// KeyFile returns the absolute client key path.
func (c *NodeConfig) KeyFile() string {
	return c.resolve(c.FullNode.SSL.PrivateKey)
}

// CAFile returns the absolute private CA certificate path.
func (c *NodeConfig) CAFile() string {
	return c.resolve(c.PrivateSSLCA.Crt)
}

func (c *NodeConfig) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// TLSConfig builds a mutual-TLS client config. Node certificates are issued
// by the node's private CA for a fixed name, not the host we dial, so the
// chain is verified against the CA while the hostname check is skipped.
func TLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}

	return &tls.Config{
		Certificates:          []tls.Certificate{cert},
		MinVersion:            tls.VersionTLS12,
		InsecureSkipVerify:    true, //nolint:gosec // chain verified below
		VerifyPeerCertificate: verifyAgainst(pool),
	}, nil
}

func verifyAgainst(pool *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("node presented no certificate")
		}
		certs := make([]*x509.Certificate, len(rawCerts))
		for i, raw := range rawCerts {
			c, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("parse node certificate: %w", err)
			}
			certs[i] = c
		}
		intermediates := x509.NewCertPool()
		for _, c := range certs[1:] {
			intermediates.AddCert(c)
		}
		_, err := certs[0].Verify(x509.VerifyOptions{
			Roots:         pool,
			Intermediates: intermediates,
		})
		return err
	}
}
