package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const sample = `schema_version: v1
general:
  api_names: [index, get, search, bogus]
  service_unique_id: node-1
servers:
  - host: es1.local
    port: 9201
    user: elastic
    password: secret
    use_ssl: true
    verify_cert_bundle: certs/ca.pem
    verify_host_name: "no"
event_groups:
  basic:
    topics: [sample.basicevent]
    document_index: event-index
    document_type: event
    id_field_name: event_id
  advanced:
    topics: [sample.advanced, sample.advanced2]
    document_index: adv
    document_type: event
    transform_script: scripts/split.go
kafka:
  brokers: [k1:9092, k2:9092]
  backpressure:
    capacity: 32
  checkpoint:
    commit_interval: 2s
telemetry:
  metrics_port: 9108
`

func TestLoad_Sample(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "certs/ca.pem", "pem")
	write(t, dir, "scripts/split.go", "package split")
	cfg, err := Load(write(t, dir, "esbridge.yml", sample))
	require.NoError(t, err)

	assert.Equal(t, SupportedSchema, cfg.SchemaVersion)
	assert.Equal(t, []string{"index", "get", "search", "bogus"}, cfg.General.APINames)
	assert.Equal(t, "node-1", cfg.General.ServiceUniqueID)
	assert.Equal(t, "esbridge.elasticsearch-api", cfg.General.ServiceTopic)
	assert.Equal(t, "esbridge.elasticsearch-api.replies", cfg.General.ReplyTopic)
	assert.False(t, cfg.General.ReloadTransformOnChange)

	require.Len(t, cfg.Servers, 1)
	s := cfg.Servers[0]
	assert.Equal(t, 9201, s.Port)
	assert.Equal(t, "no", s.VerifyHostName)
	assert.Equal(t, filepath.Join(dir, "certs/ca.pem"), s.VerifyCertBundle)

	assert.Equal(t, []string{"advanced", "basic"}, cfg.GroupNames())
	assert.Equal(t, filepath.Join(dir, "scripts/split.go"), cfg.EventGroups["advanced"].TransformScript)
	assert.Equal(t, "event_id", cfg.EventGroups["basic"].IDFieldName)
	assert.Empty(t, cfg.EventGroups["basic"].TransformScript)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(32), cfg.Kafka.BackPressure.Capacity)
	assert.Equal(t, 2*time.Second, cfg.Kafka.Checkpoint.CommitInt)
	assert.Equal(t, "esbridge", cfg.Kafka.GroupID)
	assert.Equal(t, "kafka", cfg.Responses.Driver)
	assert.Equal(t, 9108, cfg.Telemetry.MetricsPort)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ESBRIDGE__GENERAL__SERVICE_UNIQUE_ID", "from-env")
	t.Setenv("ESBRIDGE__KAFKA__GROUP_ID", "bridge-2")
	cfg, err := Load(write(t, dir, "esbridge.yml", "servers:\n  - host: localhost\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.General.ServiceUniqueID)
	assert.Equal(t, "bridge-2", cfg.Kafka.GroupID)
}

func TestLoad_InvalidSchema(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(write(t, dir, "esbridge.yml", "schema_version: v999\n"))
	assert.ErrorContains(t, err, "schema_version")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]struct {
		yaml string
		want string
	}{
		"no servers": {
			yaml: "general: {}\n",
			want: "at least one server",
		},
		"server without host": {
			yaml: "servers:\n  - port: 9200\n",
			want: "host is required",
		},
		"user without password": {
			yaml: "servers:\n  - host: a\n    user: elastic\n",
			want: "password must be specified",
		},
		"group without topics": {
			yaml: "servers: [{host: a}]\nevent_groups:\n  g: {document_index: i, document_type: t}\n",
			want: "event_groups.g: topics are required",
		},
		"group without index": {
			yaml: "servers: [{host: a}]\nevent_groups:\n  g: {topics: [t], document_type: t}\n",
			want: "document_index is required",
		},
		"group without type": {
			yaml: "servers: [{host: a}]\nevent_groups:\n  g: {topics: [t], document_index: i}\n",
			want: "document_type is required",
		},
		"missing transform script": {
			yaml: "servers: [{host: a}]\nevent_groups:\n  g: {topics: [t], document_index: i, document_type: t, transform_script: nope.js}\n",
			want: "nope.js",
		},
		"missing cert bundle": {
			yaml: "servers: [{host: a, use_ssl: true, verify_cert_bundle: ca.pem}]\n",
			want: "ca.pem",
		},
		"bad responses driver": {
			yaml: "servers: [{host: a}]\nresponses: {driver: carrier-pigeon}\n",
			want: "responses.driver",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, t.TempDir(), "esbridge.yml", tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadBus_NeedsNoServers(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadBus(write(t, dir, "client.yml", "general:\n  service_unique_id: u1\nkafka:\n  brokers: [k:9092]\n"))
	require.NoError(t, err)
	assert.Equal(t, "u1", cfg.General.ServiceUniqueID)
	assert.Equal(t, []string{"k:9092"}, cfg.Kafka.Brokers)

	_, err = Load(filepath.Join(dir, "client.yml"))
	assert.Error(t, err)
}
