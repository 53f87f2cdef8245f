package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults of the reference deployment
// --------------------------------------------------------------------------

const (
	DefaultBroker             = "localhost:9092"
	DefaultRequestTopic       = "request_topic"
	DefaultReplyTopic         = "response_topic"
	DefaultPartition          = 0
	DefaultTimeoutMillisecond = 8000
	DefaultMaxWorkers         = 16
	DefaultLogLevel           = "info"

	StartOffsetLatest   = "latest"
	StartOffsetEarliest = "earliest"
)

// --------------------------------------------------------------------------
// Broker configuration struct
// --------------------------------------------------------------------------

// BrokerConfig holds the parameters used by a transport to reach the broker
type BrokerConfig struct {
	// Addresses of the brokers (host:port)
	Brokers []string
	// Partition every publish and subscribe handle is bound to
	Partition int
	// GroupID switches subscribe handles to consumer group mode. Leave
	// empty to read the partition directly.
	GroupID string
	// StartOffset is "latest" or "earliest" and applies to new subscriptions
	StartOffset string
	// DialTimeoutSecond bounds establishing a broker connection
	DialTimeoutSecond int
	// WriteTimeoutSecond bounds a single publish
	WriteTimeoutSecond int
}

// DialTimeout returns the dial timeout, 10 seconds if unset
func (c *BrokerConfig) DialTimeout() time.Duration {
	if c.DialTimeoutSecond <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.DialTimeoutSecond) * time.Second
}

// WriteTimeout returns the write timeout, 10 seconds if unset
func (c *BrokerConfig) WriteTimeout() time.Duration {
	if c.WriteTimeoutSecond <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.WriteTimeoutSecond) * time.Second
}

// Validate checks that the configuration can be used to connect
func (c *BrokerConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("no brokers provided")
	}
	for _, b := range c.Brokers {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("empty broker address")
		}
	}
	if c.Partition < 0 {
		return fmt.Errorf("invalid partition %d", c.Partition)
	}
	switch c.StartOffset {
	case "", StartOffsetLatest, StartOffsetEarliest:
	default:
		return fmt.Errorf("invalid start offset %q (expected %s or %s)", c.StartOffset, StartOffsetLatest, StartOffsetEarliest)
	}
	return nil
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of an RPC engine / client
type ClientConfig struct {
	Broker BrokerConfig

	// ReplyTopic is the topic the engine subscribes to for replies. It may be
	// shared by many clients, the correlation id is the only discriminator.
	ReplyTopic string

	// TimeoutMillisecond is the lifetime of a single request
	TimeoutMillisecond int

	// Logging configuration
	LogLevel string
}

// Timeout returns the request timeout, DefaultTimeoutMillisecond if unset
func (c *ClientConfig) Timeout() time.Duration {
	if c.TimeoutMillisecond <= 0 {
		return DefaultTimeoutMillisecond * time.Millisecond
	}
	return time.Duration(c.TimeoutMillisecond) * time.Millisecond
}

// GetReplyTopic returns the reply topic, DefaultReplyTopic if unset
func (c *ClientConfig) GetReplyTopic() string {
	if c.ReplyTopic == "" {
		return DefaultReplyTopic
	}
	return c.ReplyTopic
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection, addField := formatHelpers(&sb)

	addSection("RPC Client")
	addField("Reply Topic", c.GetReplyTopic())
	addField("Timeout", c.Timeout().String())
	addField("Log Level", c.LogLevel)

	writeBrokerSection(&c.Broker, addSection, addField)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the configuration of a service handler
type ServerConfig struct {
	Broker BrokerConfig

	// RequestTopic is the topic the service consumes requests from
	RequestTopic string

	// DefaultReplyTopic is used for requests without a replyTo field
	DefaultReplyTopic string

	// MaxWorkers limits the number of requests processed concurrently
	MaxWorkers int

	// RateLimit limits the accepted requests per second (0 disables)
	RateLimit float64
	// RateBurst is the token bucket size of the rate limiter
	RateBurst int

	// MetricsEndpoint is the address of the /metrics http endpoint (empty disables)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// GetRequestTopic returns the request topic, DefaultRequestTopic if unset
func (c *ServerConfig) GetRequestTopic() string {
	if c.RequestTopic == "" {
		return DefaultRequestTopic
	}
	return c.RequestTopic
}

// GetDefaultReplyTopic returns the fallback reply topic, DefaultReplyTopic if unset
func (c *ServerConfig) GetDefaultReplyTopic() string {
	if c.DefaultReplyTopic == "" {
		return DefaultReplyTopic
	}
	return c.DefaultReplyTopic
}

// GetMaxWorkers returns the worker limit, at least 1
func (c *ServerConfig) GetMaxWorkers() int {
	if c.MaxWorkers < 1 {
		return 1
	}
	return c.MaxWorkers
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection, addField := formatHelpers(&sb)

	addSection("RPC Server")
	addField("Request Topic", c.GetRequestTopic())
	addField("Default Reply Topic", c.GetDefaultReplyTopic())
	addField("Workers", strconv.Itoa(c.GetMaxWorkers()))
	if c.RateLimit > 0 {
		addField("Rate Limit", fmt.Sprintf("%.1f req/s (burst %d)", c.RateLimit, c.RateBurst))
	} else {
		addField("Rate Limit", "disabled")
	}
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	writeBrokerSection(&c.Broker, addSection, addField)

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// formatHelpers returns helper functions for consistent formatting
func formatHelpers(sb *strings.Builder) (addSection func(string), addField func(string, string)) {
	addSection = func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField = func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}
	return addSection, addField
}

func writeBrokerSection(c *BrokerConfig, addSection func(string), addField func(string, string)) {
	addSection("Broker")
	addField("Partition", strconv.Itoa(c.Partition))
	if c.GroupID != "" {
		addField("Group ID", c.GroupID)
	}
	startOffset := c.StartOffset
	if startOffset == "" {
		startOffset = StartOffsetLatest
	}
	addField("Start Offset", startOffset)
	addField("Dial Timeout", c.DialTimeout().String())
	addField("Write Timeout", c.WriteTimeout().String())
	for i, broker := range c.Brokers {
		addField(fmt.Sprintf("Broker %d", i), broker)
	}
}
