/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tomoncle/crudkit/database"
)

// Options is the root command. The struct tags are interpreted by
// github.com/jessevdk/go-flags.
type Options struct {
	Check CheckCmd `command:"check" description:"Open the configured store and report its health"`
}

// CheckCmd loads the configuration, opens the provider and prints the
// health status as JSON.
type CheckCmd struct {
	Config  string        `short:"f" long:"config" description:"YAML config path"`
	EnvFile []string      `long:"env-file" description:"dotenv file loaded before reading the environment"`
	Strict  bool          `long:"strict" description:"fail when serving from the in-memory fallback store"`
	Timeout time.Duration `long:"timeout" default:"30s" description:"overall time limit"`

	out io.Writer
}

// errUnhealthy makes the command exit non-zero after the status was printed.
type errUnhealthy struct{ reason string }

func (e *errUnhealthy) Error() string { return e.reason }

func (c *CheckCmd) Execute(_ []string) error {
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	return c.check(ctx, out)
}

func (c *CheckCmd) check(ctx context.Context, out io.Writer) error {
	cfg, err := database.LoadConfig(c.Config, c.EnvFile...)
	if err != nil {
		return err
	}
	provider, err := database.NewProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	status := provider.Health(ctx)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		return err
	}

	switch {
	case !status.Healthy:
		return &errUnhealthy{reason: fmt.Sprintf("%s store is unhealthy: %s", status.Store, status.LastError)}
	case c.Strict && status.Degraded:
		return &errUnhealthy{reason: "serving from the in-memory fallback store"}
	}
	return nil
}
