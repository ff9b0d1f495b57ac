package alert

import (
	"fmt"
	"time"

	"crisisgo/internal/config"
	"crisisgo/internal/redis"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// NewMQTTClient connects to the configured broker.
func NewMQTTClient(cfg config.MQTTConfig) (mqtt.Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker must be provided")
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// Channels holds the connections opened for the configured delivery channels.
type Channels struct {
	Notifier Notifier
	Redis    *redis.Client
	MQTT     mqtt.Client
}

func (c *Channels) Close() {
	if c.Redis != nil {
		c.Redis.Close()
	}
	if c.MQTT != nil {
		c.MQTT.Disconnect(250)
	}
}

// BuildChannels opens whatever cfg.Delivery.Channels requires and combines
// the resulting notifiers.
func BuildChannels(cfg *config.Config, logger *zap.Logger) (*Channels, error) {
	ch := &Channels{}
	var notifiers Multi
	for _, name := range cfg.Delivery.Channels {
		switch name {
		case "log":
			notifiers = append(notifiers, NewLogNotifier(logger))
		case "redis":
			if ch.Redis == nil {
				client, err := redis.NewRedisClient(cfg)
				if err != nil {
					ch.Close()
					return nil, fmt.Errorf("redis delivery: %w", err)
				}
				ch.Redis = client
			}
			notifiers = append(notifiers, NewStreamNotifier(ch.Redis, cfg.Delivery.Stream))
		case "webhook":
			if cfg.Delivery.Webhook.URL == "" {
				ch.Close()
				return nil, fmt.Errorf("webhook delivery: url must be provided")
			}
			notifiers = append(notifiers, NewWebhookNotifier(
				cfg.Delivery.Webhook.URL,
				time.Duration(cfg.Delivery.Webhook.TimeoutSeconds)*time.Second,
				cfg.Delivery.Webhook.Headers,
			))
		case "mqtt":
			client, err := NewMQTTClient(cfg.Delivery.MQTT)
			if err != nil {
				ch.Close()
				return nil, fmt.Errorf("mqtt delivery: %w", err)
			}
			ch.MQTT = client
			notifiers = append(notifiers, NewMQTTNotifier(client, cfg.Delivery.MQTT.Topic, cfg.Delivery.MQTT.QoS))
		default:
			ch.Close()
			return nil, fmt.Errorf("unsupported delivery channel: %s", name)
		}
		logger.Info("delivery channel enabled", zap.String("channel", name))
	}
	if len(notifiers) == 1 {
		ch.Notifier = notifiers[0]
	} else {
		ch.Notifier = notifiers
	}
	return ch, nil
}
