package kafka

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

type BackPressureCfg struct {
	Capacity int64 `koanf:"capacity"` // max messages handled at once
}

type CheckpointCfg struct {
	CommitInt time.Duration `koanf:"commit_interval"` // flush cadence
}

// Config holds the connection and consumption settings shared by the
// consumer driver and the response producer.
type Config struct {
	Driver    string   `koanf:"driver"` // registry name, default sarama
	Brokers   []string `koanf:"brokers"`
	GroupID   string   `koanf:"group_id"`
	ClientID  string   `koanf:"client_id"`
	StartFrom string   `koanf:"start_from"` // oldest|newest (default newest)
	Version   string   `koanf:"version"`
	TLSEn     bool     `koanf:"tls_enabled"`
	SASLUser  string   `koanf:"sasl_user"`
	SASLPass  string   `koanf:"sasl_pass"`

	BackPressure BackPressureCfg `koanf:"backpressure"`
	Checkpoint   CheckpointCfg   `koanf:"checkpoint"`
}

// ApplyDefaults fills every unset field.
func ApplyDefaults(c *Config) {
	if c.Driver == "" {
		c.Driver = "sarama"
	}
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.GroupID == "" {
		c.GroupID = "esbridge"
	}
	if c.ClientID == "" {
		c.ClientID = "esbridge"
	}
	if c.Version == "" {
		c.Version = sarama.V2_8_0_0.String()
	}
	if c.BackPressure.Capacity == 0 {
		c.BackPressure.Capacity = 256
	}
	if c.Checkpoint.CommitInt == 0 {
		c.Checkpoint.CommitInt = 5 * time.Second
	}
	if c.StartFrom == "" {
		c.StartFrom = "newest"
	}
}

func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: brokers are required")
	}
	if c.BackPressure.Capacity < 0 {
		return fmt.Errorf("kafka: backpressure.capacity must be positive, got %d", c.BackPressure.Capacity)
	}
	switch c.StartFrom {
	case "", "oldest", "newest":
	default:
		return fmt.Errorf("kafka: start_from %q not supported (want oldest or newest)", c.StartFrom)
	}
	if (c.SASLUser == "") != (c.SASLPass == "") {
		return errors.New("kafka: sasl_user and sasl_pass must be set together")
	}
	if _, err := sarama.ParseKafkaVersion(c.Version); c.Version != "" && err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	return nil
}

// SaramaConfig translates c into a client configuration usable by both
// consumers and producers.
func SaramaConfig(c Config) (*sarama.Config, error) {
	ver, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return nil, err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.ClientID = c.ClientID
	sc.Consumer.Return.Errors = true
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	if c.TLSEn {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if c.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = c.SASLUser, c.SASLPass
	}
	switch c.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	return sc, nil
}
