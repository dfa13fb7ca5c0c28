// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"time"

	"github.com/caarlos0/env"
)

type Config struct {
	SessionTimeoutSecond       int    `env:"SESSION_TIMEOUT_SECOND"        envDefault:"300"   envDocs:"seconds a reserved player may stay unregistered before the host evicts them"`
	TravelSessionTimeoutSecond int    `env:"TRAVEL_SESSION_TIMEOUT_SECOND" envDefault:"45"    envDocs:"eviction timeout applied while a player is still pending join (travel in progress)"`
	SweepIntervalMs            int    `env:"SWEEP_INTERVAL_MS"             envDefault:"1000"  envDocs:"cadence of the host liveness sweep in milliseconds"`
	ConnectTimeoutMs           int    `env:"CONNECT_TIMEOUT_MS"            envDefault:"15000" envDocs:"client-side beacon connection establishment timeout in milliseconds"`
	ResponseTimeoutMs          int    `env:"RESPONSE_TIMEOUT_MS"           envDefault:"15000" envDocs:"client-side reservation response timeout in milliseconds"`
	ProceedTimeoutMs           int    `env:"PROCEED_TIMEOUT_MS"            envDefault:"30000" envDocs:"host-side timeout before a reconnected party is told the proceed gate expired"`
	ContinueDelayMs            int    `env:"CONTINUE_DELAY_MS"             envDefault:"500"   envDocs:"delay between candidate sessions during a search pass in milliseconds"`
	JoinDelayMs                int    `env:"JOIN_DELAY_MS"                 envDefault:"1000"  envDocs:"delay between a granted reservation and the directory join in milliseconds"`
	ReconnectDelayMs           int    `env:"RECONNECT_DELAY_MS"            envDefault:"2000"  envDocs:"delay before the orchestrator reconnects to the winning session's beacon"`
	GatherHostChancePercent    int    `env:"GATHER_HOST_CHANCE_PERCENT"    envDefault:"40"    envDocs:"chance to claim an empty server instead of searching when a gather search comes up empty"`
	Ranked                     bool   `env:"RANKED"                        envDefault:"false" envDocs:"ranked team balancing stacks the largest eligible team instead of the smallest"`
	BeaconListenAddr           string `env:"BEACON_LISTEN_ADDR"            envDefault:":8787" envDocs:"listen address of the beacond HTTP/websocket endpoint"`
	RedisAddr                  string `env:"REDIS_ADDR"                    envDefault:""      envDocs:"redis address for the session directory (empty uses the in-memory directory)"`
	RedisPassword              string `env:"REDIS_PASSWORD"                envDefault:""      envDocs:"redis password for the session directory"`
	LogLevel                   string `env:"LOG_LEVEL"                     envDefault:"info"  envDocs:"logrus log level"`
}

// Parse loads the configuration from the environment.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSecond) * time.Second
}

func (c *Config) TravelSessionTimeout() time.Duration {
	return time.Duration(c.TravelSessionTimeoutSecond) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

func (c *Config) ResponseTimeout() time.Duration {
	return time.Duration(c.ResponseTimeoutMs) * time.Millisecond
}

func (c *Config) ProceedTimeout() time.Duration {
	return time.Duration(c.ProceedTimeoutMs) * time.Millisecond
}

func (c *Config) ContinueDelay() time.Duration {
	return time.Duration(c.ContinueDelayMs) * time.Millisecond
}

func (c *Config) JoinDelay() time.Duration {
	return time.Duration(c.JoinDelayMs) * time.Millisecond
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

func (c *Config) GatherHostChance() float64 {
	return float64(c.GatherHostChancePercent) / 100.0
}
