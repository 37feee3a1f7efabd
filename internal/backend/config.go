package backend

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
)

const defaultPort = 9200

// Server describes one Elasticsearch node the client may talk to.
type Server struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	URLPrefix string `koanf:"url_prefix"`
	User      string `koanf:"user"`
	Password  string `koanf:"password"`

	UseSSL            bool   `koanf:"use_ssl"`
	VerifyCertificate *bool  `koanf:"verify_certificate"` // default true
	VerifyCertBundle  string `koanf:"verify_cert_bundle"`
	// VerifyHostName is a boolean ("yes", "no", ...) or the exact name the
	// server certificate must carry.
	VerifyHostName    string `koanf:"verify_host_name"`
	ClientCertificate string `koanf:"client_certificate"`
	ClientKey         string `koanf:"client_key"`
}

// Validate checks the settings that do not need the filesystem.
func (s Server) Validate() error {
	if strings.TrimSpace(s.Host) == "" {
		return errors.New("host is required")
	}
	if s.User != "" && s.Password == "" {
		return errors.New("password must be specified since user is specified")
	}
	if s.Password != "" && s.User == "" {
		return errors.New("user must be specified since password is specified")
	}
	if (s.ClientCertificate == "") != (s.ClientKey == "") {
		return errors.New("client_certificate and client_key must be set together")
	}
	return nil
}

// URL renders the node address, carrying credentials as user info.
func (s Server) URL() string {
	scheme := "http"
	if s.UseSSL {
		scheme = "https"
	}
	port := s.Port
	if port == 0 {
		port = defaultPort
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(s.Host, strconv.Itoa(port)),
	}
	if p := strings.Trim(s.URLPrefix, "/"); p != "" {
		u.Path = path.Join("/", p)
	}
	if s.User != "" {
		u.User = url.UserPassword(s.User, s.Password)
	}
	return u.String()
}

func (s Server) tlsKey() string {
	return fmt.Sprintf("%v|%v|%s|%s|%s|%s", s.UseSSL, s.VerifyCertificate == nil || *s.VerifyCertificate,
		s.VerifyCertBundle, s.VerifyHostName, s.ClientCertificate, s.ClientKey)
}

// hostNameCheck interprets VerifyHostName: verify against the dialled host,
// skip the name check, or require an explicit name.
func (s Server) hostNameCheck() (verify bool, name string) {
	v := strings.TrimSpace(s.VerifyHostName)
	if v == "" {
		return true, ""
	}
	switch strings.ToLower(v) {
	case "1", "yes", "true", "on":
		return true, ""
	case "0", "no", "false", "off":
		return false, ""
	}
	return true, v
}

// tlsConfig builds the client TLS settings for s. It returns nil when TLS is off.
func (s Server) tlsConfig() (*tls.Config, error) {
	if !s.UseSSL {
		return nil, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	var roots *x509.CertPool
	if s.VerifyCertBundle != "" {
		pem, err := os.ReadFile(s.VerifyCertBundle)
		if err != nil {
			return nil, fmt.Errorf("read verify_cert_bundle: %w", err)
		}
		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("verify_cert_bundle %s: no certificates found", s.VerifyCertBundle)
		}
		cfg.RootCAs = roots
	}
	if s.ClientCertificate != "" {
		cert, err := tls.LoadX509KeyPair(s.ClientCertificate, s.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if s.VerifyCertificate != nil && !*s.VerifyCertificate {
		cfg.InsecureSkipVerify = true
		return cfg, nil
	}
	verifyName, name := s.hostNameCheck()
	switch {
	case name != "":
		cfg.ServerName = name
	case !verifyName:
		// chain is still verified, only the name check is dropped
		cfg.InsecureSkipVerify = true
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return errors.New("no server certificate")
			}
			opts := x509.VerifyOptions{Roots: roots, Intermediates: x509.NewCertPool()}
			for _, c := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(c)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		}
	}
	return cfg, nil
}

// newTransport builds one HTTP transport for all servers. TLS settings must
// agree across servers since the client shares a single transport.
func newTransport(servers []Server) (http.RoundTripper, error) {
	var tlsCfg *tls.Config
	for i, s := range servers {
		if i > 0 && s.tlsKey() != servers[0].tlsKey() {
			return nil, fmt.Errorf("server %s: TLS settings differ from server %s", s.Host, servers[0].Host)
		}
	}
	if len(servers) > 0 {
		var err error
		if tlsCfg, err = servers[0].tlsConfig(); err != nil {
			return nil, err
		}
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = tlsCfg
	return tr, nil
}
