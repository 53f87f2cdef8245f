// Package kafka implements the kRPC transport for Apache Kafka using
// segmentio/kafka-go.
//
// Publish handle: a single kafka.Writer per transport, created on the first
// publish and shared by all topics. A fixed partition balancer pins every
// message to the configured partition (0 in the reference deployment). The
// batch timeout is kept in the millisecond range, request/response traffic
// is latency bound.
//
// Subscribe handles: every Subscribe call creates a new kafka.Reader bound
// to one topic. Without a GroupID the reader consumes the configured
// partition directly and starts at the latest offset (or the first one with
// StartOffset "earliest"). With a GroupID the reader joins the consumer
// group, which lets several service instances share a request topic.
//
// Connection readiness and errors are reported in the logs only. Connect
// validates the configuration and probes the brokers in the background.
//
// EnsureTopics and ListTopics provide the topic administration needed to set
// up the request and reply topics.
package kafka
