// mqtt.go - MQTT client used to mirror chat events to other services
// An empty broker address leaves the client disconnected and Publish a no-op.

package mqtt // Declares the package name

import ( // Import required packages
	"encoding/json" // Payload encoding for structured values
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang" // MQTT client library
	"github.com/google/uuid"                   // Unique client IDs

	"go-nutri-backend/logger" // Structured logging
)

var (
	mu     sync.RWMutex
	client paho.Client                         // Shared client, nil while disconnected
	subs   = map[string]func(payload []byte){} // Restored after every reconnect
)

const connectTimeout = 10 * time.Second

// Connect connects to broker (e.g. tcp://localhost:1883)
func Connect(broker string) error {
	if broker == "" {
		logger.L().Infow("mqtt disabled, no broker configured")
		return nil
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("nutri-backend-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.L().Warnw("mqtt connection lost", "error", err)
		}).
		SetOnConnectHandler(func(c paho.Client) { // Resubscribe after reconnects
			mu.RLock()
			defer mu.RUnlock()
			for topic, handle := range subs {
				subscribe(c, topic, handle)
			}
		})

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return err
	}

	mu.Lock()
	client = c
	mu.Unlock()
	logger.L().Infow("mqtt connected", "broker", broker)
	return nil
}

// Connected reports whether a broker connection is up
func Connected() bool {
	mu.RLock()
	defer mu.RUnlock()
	return client != nil && client.IsConnected()
}

// Publish sends payload to topic with QoS 1. Strings and byte slices go out
// as is, anything else is JSON encoded.
func Publish(topic string, payload interface{}) error {
	mu.RLock()
	c := client
	mu.RUnlock()
	if c == nil {
		return nil
	}

	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = p
	case string:
		body = []byte(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		body = b
	}

	token := c.Publish(topic, 1, false, body)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	return token.Error()
}

// Subscribe calls handle with every payload received on topic. Without a
// broker it only remembers the handler for a later Connect.
func Subscribe(topic string, handle func(payload []byte)) error {
	mu.Lock()
	subs[topic] = handle
	c := client
	mu.Unlock()
	if c == nil {
		return nil
	}
	token := subscribe(c, topic, handle)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt subscribe to %s timed out", topic)
	}
	return token.Error()
}

func subscribe(c paho.Client, topic string, handle func(payload []byte)) paho.Token {
	return c.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) {
		handle(m.Payload())
	})
}

// Disconnect closes the connection, waiting briefly for in-flight work
func Disconnect() {
	mu.Lock()
	defer mu.Unlock()
	if client != nil {
		client.Disconnect(250)
		client = nil
	}
}
