package app

import (
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ConnectMQTT connects a client to the broker in the blocking paho style.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	log.Printf("connected to MQTT broker at %s", broker)
	return client, nil
}

// publishJSON marshals v and publishes it retained at QoS 0, the fire-and
// forget level the live display tolerates. Errors are logged, never fatal.
func (p *Pipeline) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("json marshal error (%s): %v", topic, err)
		return
	}
	if token := p.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Printf("MQTT publish error (%s): %v", topic, token.Error())
	}
}
