package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/ValentinKolb/kRPC/rpc/serializer"
	"github.com/ValentinKolb/kRPC/rpc/transport"
	"github.com/ValentinKolb/kRPC/rpc/transport/kafka"
	"github.com/ValentinKolb/kRPC/rpc/transport/memory"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// processBroker is shared by all memory transports of the process, so an
// in-process service and client can talk to each other
var processBroker = memory.NewBroker()

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupBrokerFlags adds the broker connection flags to a command
func SetupBrokerFlags(cmd *cobra.Command) {
	key := "brokers"
	cmd.PersistentFlags().String(key, common.DefaultBroker, WrapString("Comma-separated list of Kafka brokers (host:port)"))

	key = "partition"
	cmd.PersistentFlags().Int(key, common.DefaultPartition, WrapString("The partition every message is published to and consumed from"))

	key = "group-id"
	cmd.PersistentFlags().String(key, "", WrapString("Consumer group for subscriptions. Empty reads the partition directly"))

	key = "start-offset"
	cmd.PersistentFlags().String(key, common.StartOffsetLatest, WrapString("Where new subscriptions start reading (latest, earliest). latest is the end of the partition when subscribing. If no broker answers at that time, reading starts at the end once the reader connects and messages written in between are skipped"))

	key = "dial-timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Timeout in seconds for connecting to a broker"))

	key = "write-timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Timeout in seconds for a single publish"))
}

// SetupClientFlags adds the flags of an RPC client to a command
func SetupClientFlags(cmd *cobra.Command) {
	SetupBrokerFlags(cmd)

	key := "request-topic"
	cmd.PersistentFlags().String(key, common.DefaultRequestTopic, WrapString("The topic requests are sent to"))

	key = "reply-topic"
	cmd.PersistentFlags().String(key, common.DefaultReplyTopic, WrapString("The topic replies are received on. It can be shared by many clients"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, common.DefaultTimeoutMillisecond, WrapString("The timeout of a single request in milliseconds"))
}

// InitConfig loads .env files and binds environment variables (KRPC_<FLAG>)
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("krpc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// InitLogging sets the level of all loggers from the log-level flag
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// GetBrokerConfig reads the broker configuration from viper
func GetBrokerConfig() common.BrokerConfig {
	var brokers []string
	for _, b := range strings.Split(viper.GetString("brokers"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return common.BrokerConfig{
		Brokers:            brokers,
		Partition:          viper.GetInt("partition"),
		GroupID:            viper.GetString("group-id"),
		StartOffset:        viper.GetString("start-offset"),
		DialTimeoutSecond:  viper.GetInt("dial-timeout"),
		WriteTimeoutSecond: viper.GetInt("write-timeout"),
	}
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Broker:             GetBrokerConfig(),
		ReplyTopic:         viper.GetString("reply-topic"),
		TimeoutMillisecond: viper.GetInt("timeout"),
		LogLevel:           viper.GetString("log-level"),
	}
}

// GetRequestTopic returns the configured request topic
func GetRequestTopic() string {
	if topic := viper.GetString("request-topic"); topic != "" {
		return topic
	}
	return common.DefaultRequestTopic
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.NewSerializer(viper.GetString("serializer"))
}

// GetTransport creates a transport based on configuration
func GetTransport() (transport.IRPCBrokerTransport, error) {
	switch viper.GetString("transport") {
	case "", "kafka":
		return kafka.NewKafkaTransport(), nil
	case "memory":
		return memory.NewMemoryTransport(processBroker), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected kafka or memory)", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
