package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/kinematic_computer/internal/config"
	"github.com/relabs-tech/kinematic_computer/internal/session"
)

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to live frames
	frameToken := client.Subscribe(cfg.TopicFrame, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f session.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: frame unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[FRAME] frontKnee=%6.1f(%s) backKnee=%6.1f(%s) kneeSym=%3d elbowSym=%3d headTilt=%6.1f overall=%3d\n",
			f.FrontKnee.Angle, f.FrontKnee.Side,
			f.BackKnee.Angle, f.BackKnee.Side,
			f.Knee.Symmetry, f.Elbow.Symmetry,
			f.BackToHead.Angle, f.OverallSymmetry,
		)
	})
	frameToken.Wait()
	if frameToken.Error() != nil {
		return frameToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicFrame)

	// Subscribe to feedback
	feedbackToken := client.Subscribe(cfg.TopicFeedback, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var fb []session.Feedback
		if err := json.Unmarshal(msg.Payload(), &fb); err != nil {
			log.Printf("console: feedback unmarshal error: %v", err)
			return
		}
		for _, f := range fb {
			if f.Kind == session.NeedsImprovement || f.Kind == session.Bad {
				fmt.Printf("[FDBK ] %-16s %-18s %s (%.1f)\n", f.Metric, f.Kind, f.Message, f.Value)
			}
		}
	})
	feedbackToken.Wait()
	if feedbackToken.Error() != nil {
		return feedbackToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicFeedback)

	// Subscribe to session summaries
	summaryToken := client.Subscribe(cfg.TopicSummary, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s session.Summary
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: summary unmarshal error: %v", err)
			return
		}

		if s.JointAngles == nil {
			fmt.Printf("[SUMM ] frames=%d (no joint angles)\n", s.TotalFrames)
			return
		}
		fmt.Printf(
			"[SUMM ] frames=%d frontKnee=%6.1f(%s) knee L/R=%6.1f/%6.1f sym=%3d elbow L/R=%6.1f/%6.1f sym=%3d\n",
			s.TotalFrames,
			s.JointAngles.FrontKnee.Angle, s.JointAngles.FrontKnee.Side,
			s.JointAngles.Knee.Left, s.JointAngles.Knee.Right, s.JointAngles.Knee.Symmetry,
			s.JointAngles.Elbow.Left, s.JointAngles.Elbow.Right, s.JointAngles.Elbow.Symmetry,
		)
	})
	summaryToken.Wait()
	if summaryToken.Error() != nil {
		return summaryToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicSummary)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
