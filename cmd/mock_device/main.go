// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/kinematic_computer/internal/imu"
)

// mock_device simulates worn IMU devices pushing samples over the ingestion
// websocket, for development without hardware.

func main() {
	addr := flag.String("addr", "ws://localhost:8000/ws/imu", "ingestion websocket URL")
	devices := flag.String("devices", "pelvis,left_wrist,right_wrist", "comma-separated device IDs")
	rate := flag.Int("rate", 100, "samples per second per device")
	flag.Parse()

	log.Println("starting kinematic-computer mock device feeder")

	var wg sync.WaitGroup
	for i, id := range strings.Split(*devices, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		wg.Add(1)
		go func(deviceID string, phaseOffset float64) {
			defer wg.Done()
			if err := runDevice(*addr, deviceID, *rate, phaseOffset); err != nil {
				log.Printf("device %s: %v", deviceID, err)
			}
		}(id, float64(i)*math.Pi/3)
	}
	wg.Wait()
}

func runDevice(addr, deviceID string, rate int, phaseOffset float64) error {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("device %s: connected to %s", deviceID, addr)

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	start := time.Now()
	for now := range ticker.C {
		t := now.Sub(start).Seconds()
		s := synthesize(deviceID, now.UnixNano(), t, phaseOffset)
		if err := conn.WriteJSON(s); err != nil {
			return err
		}
	}
	return nil
}

// synthesize produces a smooth, deterministic reading: a small orientation
// wobble about the vertical axis plus gravity with a gait-frequency ripple.
func synthesize(deviceID string, nanos int64, t, phaseOffset float64) imu.Sample {
	wobble := 0.15 * math.Sin(2*math.Pi*1.4*t+phaseOffset)
	half := wobble / 2
	return imu.Sample{
		DeviceID:       deviceID,
		TimestampNanos: nanos,
		Acceleration: r3.Vec{
			X: 0.3 * math.Sin(2*math.Pi*1.4*t+phaseOffset),
			Y: -9.81 + 0.5*math.Sin(2*math.Pi*2.8*t+phaseOffset),
			Z: 0.2 * math.Cos(2*math.Pi*1.4*t+phaseOffset),
		},
		Orientation: quat.Number{
			Real: math.Cos(half),
			Jmag: math.Sin(half),
		},
	}
}
