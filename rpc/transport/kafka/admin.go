package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/segmentio/kafka-go"
)

// TopicSpec describes a topic to create
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

// EnsureTopics creates the given topics through the cluster controller.
// Topics that already exist are left untouched. It returns the names of the
// topics that were created.
func EnsureTopics(ctx context.Context, config common.BrokerConfig, specs ...TopicSpec) ([]string, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn, err := dialController(ctx, config)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	created := make([]string, 0, len(specs))
	for _, spec := range specs {
		topicConfig := kafka.TopicConfig{
			Topic:             spec.Name,
			NumPartitions:     max(spec.Partitions, 1),
			ReplicationFactor: max(spec.ReplicationFactor, 1),
		}

		// create one by one, CreateTopics only reports the first error
		err := conn.CreateTopics(topicConfig)
		if errors.Is(err, kafka.TopicAlreadyExists) {
			Logger.Infof("topic %s already exists", spec.Name)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to create topic %s: %w", spec.Name, err)
		}

		Logger.Infof("created topic %s (partitions=%d, replication=%d)", spec.Name, topicConfig.NumPartitions, topicConfig.ReplicationFactor)
		created = append(created, spec.Name)
	}

	return created, nil
}

// ListTopics returns the sorted names of all topics in the cluster
func ListTopics(ctx context.Context, config common.BrokerConfig) ([]string, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn, err := newDialer(config).DialContext(ctx, "tcp", config.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Brokers[0], err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return nil, fmt.Errorf("failed to read partitions: %w", err)
	}

	seen := make(map[string]struct{})
	for _, p := range partitions {
		seen[p.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(seen))
	for topic := range seen {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	return topics, nil
}

// dialController connects to the controller of the cluster, topics can only
// be created there
func dialController(ctx context.Context, config common.BrokerConfig) (*kafka.Conn, error) {
	dialer := newDialer(config)

	conn, err := dialer.DialContext(ctx, "tcp", config.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return nil, fmt.Errorf("failed to find controller: %w", err)
	}

	address := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to controller %s: %w", address, err)
	}
	return controllerConn, nil
}
