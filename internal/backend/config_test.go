package backend

import (
	"context"
	"net/http"
	"testing"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_URL(t *testing.T) {
	assert.Equal(t, "http://localhost:9200", Server{Host: "localhost"}.URL())
	assert.Equal(t, "https://u:p@es.internal:9243/proxy/es",
		Server{Host: "es.internal", Port: 9243, UseSSL: true, URLPrefix: "/proxy/es/", User: "u", Password: "p"}.URL())
	assert.Equal(t, "http://[::1]:9200", Server{Host: "::1"}.URL())
}

func TestServer_Validate(t *testing.T) {
	assert.Error(t, Server{}.Validate())
	assert.ErrorContains(t, Server{Host: "h", User: "u"}.Validate(), "password")
	assert.ErrorContains(t, Server{Host: "h", Password: "p"}.Validate(), "user")
	assert.Error(t, Server{Host: "h", ClientCertificate: "c.pem"}.Validate())
	assert.NoError(t, Server{Host: "h", User: "u", Password: "p"}.Validate())
}

func TestServer_HostNameCheck(t *testing.T) {
	cases := map[string]struct {
		verify bool
		name   string
	}{
		"":          {true, ""},
		"yes":       {true, ""},
		"True":      {true, ""},
		"no":        {false, ""},
		"false":     {false, ""},
		"myserver":  {true, "myserver"},
	}
	for in, want := range cases {
		v, n := Server{VerifyHostName: in}.hostNameCheck()
		assert.Equal(t, want.verify, v, in)
		assert.Equal(t, want.name, n, in)
	}
}

func TestServer_TLSConfig(t *testing.T) {
	cfg, err := Server{Host: "h"}.tlsConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)

	off := false
	cfg, err = Server{Host: "h", UseSSL: true, VerifyCertificate: &off}.tlsConfig()
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)

	cfg, err = Server{Host: "h", UseSSL: true, VerifyHostName: "myserver"}.tlsConfig()
	require.NoError(t, err)
	assert.Equal(t, "myserver", cfg.ServerName)
	assert.False(t, cfg.InsecureSkipVerify)

	cfg, err = Server{Host: "h", UseSSL: true, VerifyHostName: "no"}.tlsConfig()
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.NotNil(t, cfg.VerifyConnection)

	_, err = Server{Host: "h", UseSSL: true, VerifyCertBundle: "/does/not/exist.pem"}.tlsConfig()
	assert.Error(t, err)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New([]Server{{Host: "a", UseSSL: true}, {Host: "b"}})
	assert.ErrorContains(t, err, "TLS settings differ")
}

func TestNew_CredentialsFromURL(t *testing.T) {
	f := &fakeES{body: `{}`}
	c, err := New([]Server{{Host: "es.test", User: "elastic", Password: "secret"}}, WithTransport(f))
	require.NoError(t, err)
	_, err = c.do(context.Background(), infoReq(), false)
	require.NoError(t, err)
	assert.Equal(t, "Basic ZWxhc3RpYzpzZWNyZXQ=", f.last().Auth)
	assert.Equal(t, http.MethodGet, f.last().Method)
}

func infoReq() esapi.InfoRequest { return esapi.InfoRequest{} }
