package demo

import (
	"runtime"
	"testing"

	"github.com/spf13/viper"
)

// TestRunInProcess runs the demo command with the in-process service. The
// first request is published right after the service starts, so it must not
// get lost before the service consumes the request topic.
func TestRunInProcess(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))
	t.Cleanup(viper.Reset)

	viper.Set("transport", "memory")
	viper.Set("serializer", "json")
	viper.Set("request-topic", "demo_request_topic")
	viper.Set("reply-topic", "demo_response_topic")
	viper.Set("timeout", 500)

	for i := 0; i < 5; i++ {
		if err := run(nil, nil); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}
}
